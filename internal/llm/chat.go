package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"editron/internal/config"
	"editron/internal/domain"
)

// ChatService turns one canonical conversation into a stream of
// discrete events. It is single-shot: it invokes the matching provider
// adapter exactly once per call and never loops; looping is the agent
// orchestrator's responsibility.
type ChatService struct {
	registry *Registry
	tools    []ToolSchema
	logger   *slog.Logger
}

// NewChatService creates a chat service over the provider registry.
func NewChatService(registry *Registry, includeDelete bool, logger *slog.Logger) *ChatService {
	return &ChatService{
		registry: registry,
		tools:    EditorToolSchemas(includeDelete),
		logger:   logger,
	}
}

// ChatRequest is one chat invocation: the conversation so far, the
// selected provider, an optional file-tree listing for the system
// prompt, and an optional caller-supplied credential.
type ChatRequest struct {
	Messages   []Turn `json:"messages"`
	Provider   string `json:"provider"`
	FileTree   string `json:"fileTree,omitempty"`
	UserAPIKey string `json:"userApiKey,omitempty"`
}

// Stream resolves the provider and credential, then emits the model's
// response as events: one tool_call event per proposed call or a
// single text event, followed by done. Any adapter failure becomes a
// single error event in place of done. A missing credential is
// returned as an error before any event is emitted so callers can
// reject the request without starting a stream.
func (s *ChatService) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	if err := s.validateChatRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	entry := s.registry.Resolve(req.Provider)
	apiKey, err := ResolveCredential(entry.Spec, req.UserAPIKey)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)

		result, err := entry.Provider.Generate(ctx, &GenerateRequest{
			Messages: req.Messages,
			System:   BuildSystemPrompt(req.FileTree),
			Tools:    s.tools,
			Model:    entry.Spec.ChatModel,
			APIKey:   apiKey,
		})
		if err != nil {
			s.logger.Warn("chat generation failed",
				"provider", entry.Spec.ID,
				"error", err,
			)
			emit(ctx, events, StreamEvent{Type: EventError, Content: err.Error()})
			return
		}

		if result.Type == ResultToolCalls {
			for _, call := range result.ToolCalls {
				emit(ctx, events, StreamEvent{
					Type:     EventToolCall,
					ToolCall: parseInvocation(call),
				})
			}
		} else {
			emit(ctx, events, StreamEvent{Type: EventText, Content: result.Text})
		}

		emit(ctx, events, StreamEvent{Type: EventDone})
	}()

	return events, nil
}

func (s *ChatService) validateChatRequest(req *ChatRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Messages, validation.Required),
		validation.Field(&req.Messages, validation.Each(validation.By(validateTurn))),
	)
}

func validateTurn(value interface{}) error {
	turn, ok := value.(Turn)
	if !ok {
		return fmt.Errorf("expected a message object")
	}
	if turn.Role == "" {
		return fmt.Errorf("message role is required")
	}
	if turn.Content != nil && len(*turn.Content) > config.MaxMessageLength {
		return fmt.Errorf("message content exceeds %d characters", config.MaxMessageLength)
	}
	return nil
}

// parseInvocation decodes a tool call's JSON-encoded arguments. A
// malformed argument payload yields nil Arguments; downstream feeds an
// error string back to the model instead of aborting.
func parseInvocation(call ToolCall) *ToolInvocation {
	invocation := &ToolInvocation{
		ID:   call.ID,
		Name: call.Function.Name,
	}
	if call.Function.Arguments != "" {
		_ = json.Unmarshal([]byte(call.Function.Arguments), &invocation.Arguments)
	}
	return invocation
}

func emit(ctx context.Context, events chan<- StreamEvent, event StreamEvent) {
	select {
	case events <- event:
	case <-ctx.Done():
	}
}
