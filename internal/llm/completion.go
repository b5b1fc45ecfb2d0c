package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"editron/internal/config"
	"editron/internal/domain"
)

// CompletionService serves single-shot inline completions. Stateless,
// no tool calling, best effort.
type CompletionService struct {
	registry *Registry
	logger   *slog.Logger
}

// NewCompletionService creates a completion service over the provider
// registry.
func NewCompletionService(registry *Registry, logger *slog.Logger) *CompletionService {
	return &CompletionService{registry: registry, logger: logger}
}

// CompleteRequest is one inline completion invocation.
type CompleteRequest struct {
	Prompt     string `json:"prompt"`
	Language   string `json:"language,omitempty"`
	Provider   string `json:"provider,omitempty"`
	UserAPIKey string `json:"userApiKey,omitempty"`
}

// Complete returns a short continuation for the prompt, or an error.
// The detected language, when present, is prepended as context.
func (s *CompletionService) Complete(ctx context.Context, req *CompleteRequest) (string, error) {
	if err := s.validateCompleteRequest(req); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	entry := s.registry.Resolve(req.Provider)
	apiKey, err := ResolveCredential(entry.Spec, req.UserAPIKey)
	if err != nil {
		return "", err
	}

	prompt := req.Prompt
	if req.Language != "" {
		prompt = "Language: " + req.Language + "\n\n" + prompt
	}

	completion, err := entry.Provider.Complete(ctx, &CompletionRequest{
		Prompt: prompt,
		System: CompletionSystemPrompt,
		Model:  entry.Spec.CompletionModel,
		APIKey: apiKey,
	})
	if err != nil {
		s.logger.Warn("completion failed",
			"provider", entry.Spec.ID,
			"error", err,
		)
		return "", err
	}

	return strings.TrimSpace(completion), nil
}

func (s *CompletionService) validateCompleteRequest(req *CompleteRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Prompt,
			validation.Required,
			validation.Length(1, config.MaxCompletionPromptLength),
		),
	)
}
