package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"editron/internal/agent"
	"editron/internal/config"
	"editron/internal/handler"
	"editron/internal/llm"
	"editron/internal/llm/providers"
	"editron/internal/middleware"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" || cfg.Debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"default_provider", cfg.DefaultProvider,
	)

	// Build the provider registry (built-in table + optional overrides)
	registry, err := llm.NewRegistry(cfg, providers.New, logger)
	if err != nil {
		log.Fatalf("Failed to setup providers: %v", err)
	}

	// Services
	chatService := llm.NewChatService(registry, cfg.EnableDeleteTool, logger)
	completionService := llm.NewCompletionService(registry, logger)
	loop := agent.NewLoop(chatService, cfg.AgentMaxRounds, logger)

	// Handlers
	chatHandler := handler.NewChatHandler(chatService, logger)
	completionHandler := handler.NewCompletionHandler(completionService, logger)
	agentHandler := handler.NewAgentHandler(loop, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.Health)

	mux.HandleFunc("POST /api/chat", chatHandler.Stream)
	mux.HandleFunc("POST /api/completion", completionHandler.Complete)
	mux.HandleFunc("POST /api/agent", agentHandler.Run)

	// Middleware chain: CORS → Recovery → Routes
	var root http.Handler = mux
	root = middleware.Recovery(logger)(root)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
