package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	// LLM Configuration
	GeminiAPIKey    string
	GroqAPIKey      string
	MistralAPIKey   string
	DefaultProvider string
	ProvidersFile   string // optional YAML override for provider endpoints/models
	// Agent loop
	AgentMaxRounds   int
	EnableDeleteTool bool
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		// LLM Configuration
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
		MistralAPIKey:   getEnv("MISTRAL_API_KEY", ""),
		DefaultProvider: getEnv("DEFAULT_PROVIDER", "gemini"),
		ProvidersFile:   getEnv("PROVIDERS_FILE", ""),
		// Agent loop - the round ceiling is a safety valve against
		// runaway tool calling and must stay present even if tuned.
		AgentMaxRounds:   getEnvInt("AGENT_MAX_ROUNDS", 10),
		EnableDeleteTool: getEnv("ENABLE_DELETE_TOOL", "false") == "true",
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
