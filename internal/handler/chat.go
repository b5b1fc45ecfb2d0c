package handler

import (
	"log/slog"
	"net/http"
	"time"

	"editron/internal/handler/sse"
	"editron/internal/httputil"
	"editron/internal/llm"
)

// ChatHandler streams single-shot chat responses over SSE
type ChatHandler struct {
	chat      *llm.ChatService
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *llm.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chat:      chat,
		keepAlive: sse.DefaultConfig().KeepAliveInterval,
		logger:    logger,
	}
}

// Stream runs one model call and streams its events
// POST /api/chat
// Failures before the first event map to HTTP errors; failures after
// the stream starts arrive as in-stream error events with HTTP 200.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req llm.ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.chat.Stream(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	writer, ok := sse.NewWriter(w)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Keepalive comments cover the window before the model responds,
	// which can exceed proxy idle timeouts.
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writer.WriteEvent(event); err != nil {
				h.logger.Debug("chat stream client gone",
					"provider", req.Provider,
					"error", err,
				)
				return
			}
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				return
			}
		}
	}
}
