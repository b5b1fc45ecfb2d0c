package handler

import (
	"log/slog"
	"net/http"

	"editron/internal/httputil"
	"editron/internal/llm"
)

// CompletionHandler serves inline code completions
type CompletionHandler struct {
	completion *llm.CompletionService
	logger     *slog.Logger
}

// NewCompletionHandler creates a new completion handler
func NewCompletionHandler(completion *llm.CompletionService, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{
		completion: completion,
		logger:     logger,
	}
}

// Complete returns one completion candidate for the prompt
// POST /api/completion
func (h *CompletionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req llm.CompleteRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	completion, err := h.completion.Complete(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]string{"completion": completion})
}
