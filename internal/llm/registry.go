package llm

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"editron/internal/config"
	"editron/internal/domain"
)

// Provider families. The parts family expresses content as ordered
// text/function-call parts with an out-of-band system instruction; the
// messages family is OpenAI-compatible.
const (
	FamilyParts    = "parts"
	FamilyMessages = "messages"
)

// Spec describes one selectable provider: where to reach it, which
// models to use, and the configured default credential.
type Spec struct {
	ID              string
	Label           string
	Family          string
	Endpoint        string
	ChatModel       string
	CompletionModel string
	APIKey          string // process-wide default; per-request keys override
}

// Registry maps stable provider ids to specs and their adapters.
// Unknown ids fall back to the parts-family default.
type Registry struct {
	entries   map[string]*Entry
	defaultID string
}

// Entry pairs a provider spec with its constructed adapter.
type Entry struct {
	Spec     Spec
	Provider Provider
}

// providerFactory builds the adapter for a spec. Installed by
// NewRegistry; tests swap in scripted providers via Register.
type providerFactory func(spec Spec) (Provider, error)

// providersFile is the YAML shape of an optional provider override
// file. Only the fields present override the built-in table.
type providersFile struct {
	Providers map[string]struct {
		Endpoint        string `yaml:"endpoint"`
		ChatModel       string `yaml:"chat_model"`
		CompletionModel string `yaml:"completion_model"`
	} `yaml:"providers"`
}

func builtinSpecs(cfg *config.Config) []Spec {
	return []Spec{
		{
			ID:              "gemini",
			Label:           "Gemini",
			Family:          FamilyParts,
			Endpoint:        "https://generativelanguage.googleapis.com/v1beta/models",
			ChatModel:       "gemini-2.0-flash",
			CompletionModel: "gemini-2.0-flash",
			APIKey:          cfg.GeminiAPIKey,
		},
		{
			ID:              "groq",
			Label:           "Groq",
			Family:          FamilyMessages,
			Endpoint:        "https://api.groq.com/openai/v1/chat/completions",
			ChatModel:       "openai/gpt-oss-120b",
			CompletionModel: "llama-3.3-70b-versatile",
			APIKey:          cfg.GroqAPIKey,
		},
		{
			ID:              "mistral",
			Label:           "Mistral",
			Family:          FamilyMessages,
			Endpoint:        "https://api.mistral.ai/v1/chat/completions",
			ChatModel:       "mistral-small-latest",
			CompletionModel: "codestral-latest",
			APIKey:          cfg.MistralAPIKey,
		},
	}
}

// NewRegistry builds the provider registry from the built-in table,
// the optional providers file, and the configured credentials.
func NewRegistry(cfg *config.Config, factory providerFactory, logger *slog.Logger) (*Registry, error) {
	specs := builtinSpecs(cfg)

	if cfg.ProvidersFile != "" {
		overrides, err := loadProvidersFile(cfg.ProvidersFile)
		if err != nil {
			return nil, fmt.Errorf("load providers file: %w", err)
		}
		applyOverrides(specs, overrides)
		logger.Info("provider overrides applied", "file", cfg.ProvidersFile)
	}

	defaultID := cfg.DefaultProvider
	registry := &Registry{entries: make(map[string]*Entry, len(specs))}
	for _, spec := range specs {
		provider, err := factory(spec)
		if err != nil {
			return nil, fmt.Errorf("setup provider %s: %w", spec.ID, err)
		}
		registry.entries[spec.ID] = &Entry{Spec: spec, Provider: provider}
		logger.Info("provider registered",
			"id", spec.ID,
			"family", spec.Family,
			"chat_model", spec.ChatModel,
			"has_key", spec.APIKey != "",
		)
	}

	if _, ok := registry.entries[defaultID]; !ok {
		defaultID = "gemini"
	}
	registry.defaultID = defaultID

	return registry, nil
}

// Register adds or replaces an entry. Used by tests to install
// scripted providers.
func (r *Registry) Register(entry *Entry) {
	if r.entries == nil {
		r.entries = make(map[string]*Entry)
	}
	r.entries[entry.Spec.ID] = entry
	if r.defaultID == "" {
		r.defaultID = entry.Spec.ID
	}
}

// Resolve returns the entry for the given provider id, falling back to
// the default for unknown or empty ids.
func (r *Registry) Resolve(id string) *Entry {
	if entry, ok := r.entries[id]; ok {
		return entry
	}
	return r.entries[r.defaultID]
}

// ResolveCredential applies the precedence rule: a caller-supplied key
// wins over the process-wide configured default.
func ResolveCredential(spec Spec, userAPIKey string) (string, error) {
	if userAPIKey != "" {
		return userAPIKey, nil
	}
	if spec.APIKey != "" {
		return spec.APIKey, nil
	}
	return "", &domain.MissingCredentialError{Provider: spec.Label}
}

func loadProvidersFile(path string) (*providersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func applyOverrides(specs []Spec, file *providersFile) {
	for i := range specs {
		override, ok := file.Providers[specs[i].ID]
		if !ok {
			continue
		}
		if override.Endpoint != "" {
			specs[i].Endpoint = override.Endpoint
		}
		if override.ChatModel != "" {
			specs[i].ChatModel = override.ChatModel
		}
		if override.CompletionModel != "" {
			specs[i].CompletionModel = override.CompletionModel
		}
	}
}
