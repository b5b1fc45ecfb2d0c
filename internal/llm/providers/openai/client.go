// Package openai implements the messages-family provider adapter for
// OpenAI-compatible chat completion backends (Groq, Mistral). The flat
// message list, embedded tool calls, and tool-role results all stay
// inside this package.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"editron/internal/domain"
	"editron/internal/llm"
)

const (
	// DefaultTimeout is the default HTTP timeout per attempt.
	DefaultTimeout = 60 * time.Second

	// maxAttempts bounds the 429 retry loop: the third rate-limited
	// response fails the invocation.
	maxAttempts = 3

	// defaultRetryAfter is used when a 429 carries no parseable
	// Retry-After header.
	defaultRetryAfter = 5 * time.Second
)

// Client is the messages-family adapter.
type Client struct {
	label      string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates an adapter for an OpenAI-compatible chat
// completions endpoint.
func NewClient(label, endpoint string) *Client {
	return &Client{
		label:    label,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// NewClientWithHTTPClient creates an adapter with a custom HTTP client.
func NewClientWithHTTPClient(label, endpoint string, httpClient *http.Client) *Client {
	return &Client{label: label, endpoint: endpoint, httpClient: httpClient}
}

// Name returns the provider label.
func (c *Client) Name() string { return c.label }

// --- wire types ---

type chatBody struct {
	Model             string         `json:"model"`
	Messages          []chatMessage  `json:"messages"`
	Tools             []toolWrapper  `json:"tools,omitempty"`
	ToolChoice        string         `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool          `json:"parallel_tool_calls,omitempty"`
	Temperature       float64        `json:"temperature"`
	MaxTokens         int            `json:"max_tokens"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type toolWrapper struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string        `json:"content"`
			ToolCalls []llm.ToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends one non-streaming chat request. Rate-limited attempts
// honor the Retry-After header before retrying; any other failure is
// terminal for the invocation.
func (c *Client) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.Result, error) {
	parallel := false
	body := &chatBody{
		Model:             req.Model,
		Messages:          translateConversation(req.System, req.Messages),
		Tools:             translateTools(req.Tools),
		ToolChoice:        "auto",
		ParallelToolCalls: &parallel,
		Temperature:       0.3,
		MaxTokens:         4096,
	}

	resp, err := c.postWithRetry(ctx, req.APIKey, body)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, &domain.EmptyResponseError{Provider: c.label}
	}

	message := resp.Choices[0].Message
	if len(message.ToolCalls) > 0 {
		calls := make([]llm.ToolCall, len(message.ToolCalls))
		for i, call := range message.ToolCalls {
			if call.ID == "" {
				call.ID = "call_" + uuid.NewString()
			}
			calls[i] = call
		}
		return &llm.Result{Type: llm.ResultToolCalls, ToolCalls: calls}, nil
	}

	text := ""
	if message.Content != nil {
		text = *message.Content
	}
	return &llm.Result{Type: llm.ResultText, Text: text}, nil
}

// Complete sends one single-turn completion request, no tools and no
// retry.
func (c *Client) Complete(ctx context.Context, req *llm.CompletionRequest) (string, error) {
	system := req.System
	prompt := req.Prompt
	body := &chatBody{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: &system},
			{Role: "user", Content: &prompt},
		},
		Temperature: 0.2,
		MaxTokens:   256,
	}

	resp, err := c.post(ctx, req.APIKey, body)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", &domain.EmptyResponseError{Provider: c.label}
	}
	return *resp.Choices[0].Message.Content, nil
}

// postWithRetry posts the request, retrying 429 responses after the
// indicated delay for up to maxAttempts total attempts.
func (c *Client) postWithRetry(ctx context.Context, apiKey string, body *chatBody) (*chatResponse, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.post(ctx, apiKey, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		upstream, rateLimited := isRateLimited(err)
		if !rateLimited || attempt == maxAttempts-1 {
			return nil, err
		}

		if err := sleep(ctx, retryDelay(upstream.RetryAfter)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func isRateLimited(err error) (*domain.UpstreamError, bool) {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) && upstream.Status == http.StatusTooManyRequests {
		return upstream, true
	}
	return nil, false
}

func (c *Client) post(ctx context.Context, apiKey string, body *chatBody) (*chatResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &domain.UpstreamError{
			Provider:   c.label,
			Status:     httpResp.StatusCode,
			Body:       string(respBody),
			RetryAfter: httpResp.Header.Get("Retry-After"),
		}
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// retryDelay parses a Retry-After value as seconds (float). Missing or
// unparseable values wait the default.
func retryDelay(retryAfter string) time.Duration {
	if retryAfter == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.ParseFloat(retryAfter, 64)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds * float64(time.Second))
}

// sleep waits for the given duration without busy-waiting, honoring
// context cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// translateConversation prepends the system prompt and maps canonical
// turns onto the flat message list. The canonical shape is already
// messages-oriented, so turns pass through near-verbatim.
func translateConversation(system string, messages []llm.Turn) []chatMessage {
	out := make([]chatMessage, 0, len(messages)+1)
	out = append(out, chatMessage{Role: "system", Content: &system})
	for _, msg := range messages {
		out = append(out, chatMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		})
	}
	return out
}

func translateTools(schemas []llm.ToolSchema) []toolWrapper {
	if len(schemas) == 0 {
		return nil
	}
	wrappers := make([]toolWrapper, len(schemas))
	for i, schema := range schemas {
		wrappers[i] = toolWrapper{
			Type: "function",
			Function: toolFunction{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.Parameters,
			},
		}
	}
	return wrappers
}
