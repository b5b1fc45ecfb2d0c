package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"editron/internal/agent"
	"editron/internal/doctree"
	"editron/internal/domain"
	"editron/internal/handler/sse"
	"editron/internal/httputil"
	"editron/internal/llm"
)

// AgentHandler runs the server-hosted edit loop and streams its
// progress over SSE.
type AgentHandler struct {
	loop      *agent.Loop
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(loop *agent.Loop, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		loop:      loop,
		keepAlive: sse.DefaultConfig().KeepAliveInterval,
		logger:    logger,
	}
}

// AgentRequest is the body of POST /api/agent.
type AgentRequest struct {
	Message    string          `json:"message"`
	History    []llm.Turn      `json:"history,omitempty"`
	Tree       *doctree.Folder `json:"tree"`
	Provider   string          `json:"provider"`
	UserAPIKey string          `json:"userApiKey,omitempty"`
}

func (r *AgentRequest) validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Message, validation.Required),
		validation.Field(&r.Tree, validation.Required),
	)
}

// agentEvent is one SSE frame emitted while the loop runs. The done
// frame carries the terminal state and the mutated tree so the client
// can replace its workspace wholesale.
type agentEvent struct {
	Type    string          `json:"type"`
	Content string          `json:"content,omitempty"`
	Path    string          `json:"path,omitempty"`
	State   agent.State     `json:"state,omitempty"`
	Tree    *doctree.Folder `json:"tree,omitempty"`
}

// Run executes the agent loop for one user instruction
// POST /api/agent
func (h *AgentHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		handleError(w, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}

	writer, ok := sse.NewWriter(w)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	emit := func(event agentEvent) {
		if err := writer.WriteEvent(event); err != nil {
			h.logger.Debug("agent stream client gone",
				"provider", req.Provider,
				"event", event.Type,
				"error", err,
			)
		}
	}

	// Each model round can outlast proxy idle timeouts, so a side
	// goroutine emits keepalive comments until the loop returns. The
	// writer serializes frames across goroutines; the handler waits
	// for the goroutine so no write outlives the response.
	stop := make(chan struct{})
	idle := make(chan struct{})
	defer func() {
		close(stop)
		<-idle
	}()
	go func() {
		defer close(idle)
		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	// Callbacks fire synchronously from Run, so event frames stay in
	// loop order.
	result, err := h.loop.Run(r.Context(), &agent.Request{
		Message:    req.Message,
		History:    req.History,
		Tree:       req.Tree,
		Provider:   req.Provider,
		UserAPIKey: req.UserAPIKey,
		Callbacks: agent.Callbacks{
			OnText: func(text string) {
				emit(agentEvent{Type: "text", Content: text})
			},
			OnToolActivity: func(activity string) {
				emit(agentEvent{Type: "tool_activity", Content: activity})
			},
			OnFileEdit: func(path, content string) {
				emit(agentEvent{Type: "file_edit", Path: path, Content: content})
			},
			OnFileDelete: func(path string) {
				emit(agentEvent{Type: "file_delete", Path: path})
			},
		},
	})
	if err != nil {
		h.logger.Warn("agent run failed",
			"provider", req.Provider,
			"error", err,
		)
		emit(agentEvent{Type: "error", Content: err.Error()})
		return
	}

	if result.State == agent.StateFailed {
		emit(agentEvent{Type: "error", Content: result.FinalText})
	}
	emit(agentEvent{Type: "done", State: result.State, Tree: result.Tree})
}
