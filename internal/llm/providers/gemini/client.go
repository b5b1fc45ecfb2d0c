// Package gemini implements the parts-family provider adapter: content
// is expressed as an ordered list of text/function-call parts and the
// system instruction travels out-of-band.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"editron/internal/domain"
	"editron/internal/llm"
)

// DefaultTimeout is the default HTTP timeout for generate requests.
const DefaultTimeout = 60 * time.Second

// Client is the parts-family adapter. All wire shapes stay inside this
// package.
type Client struct {
	label      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an adapter for a generativelanguage-style backend.
// baseURL is the models collection URL; the model name and action are
// appended per request.
func NewClient(label, baseURL string) *Client {
	return &Client{
		label:   label,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// NewClientWithHTTPClient creates an adapter with a custom HTTP client.
func NewClientWithHTTPClient(label, baseURL string, httpClient *http.Client) *Client {
	return &Client{label: label, baseURL: baseURL, httpClient: httpClient}
}

// Name returns the provider label.
func (c *Client) Name() string { return c.label }

// --- wire types ---

type generateBody struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	Tools             []toolsEntry     `json:"tools,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type toolsEntry struct {
	FunctionDeclarations []functionDeclaration `json:"function_declarations"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type generationConfig struct {
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
	TopP            *float64 `json:"topP,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends one non-streaming chat request and normalizes the
// response into text or tool calls.
func (c *Client) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.Result, error) {
	body := &generateBody{
		SystemInstruction: &content{Parts: []part{{Text: req.System}}},
		Contents:          translateConversation(req.Messages),
		GenerationConfig: generationConfig{
			Temperature:     0.3,
			MaxOutputTokens: 8192,
		},
	}
	if len(req.Tools) > 0 {
		body.Tools = []toolsEntry{{FunctionDeclarations: translateTools(req.Tools)}}
	}

	resp, err := c.post(ctx, req.Model, req.APIKey, body)
	if err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 {
		return nil, &domain.EmptyResponseError{Provider: c.label}
	}

	parts := resp.Candidates[0].Content.Parts
	calls := make([]llm.ToolCall, 0, len(parts))
	for _, p := range parts {
		if p.FunctionCall == nil {
			continue
		}
		args, err := json.Marshal(p.FunctionCall.Args)
		if err != nil {
			return nil, fmt.Errorf("encode function call args: %w", err)
		}
		// The backend supplies no call id; assign one locally so tool
		// results can reference it.
		calls = append(calls, llm.ToolCall{
			ID:   "call_" + uuid.NewString(),
			Type: "function",
			Function: llm.FunctionCall{
				Name:      p.FunctionCall.Name,
				Arguments: string(args),
			},
		})
	}

	if len(calls) > 0 {
		return &llm.Result{Type: llm.ResultToolCalls, ToolCalls: calls}, nil
	}

	var text strings.Builder
	for _, p := range parts {
		text.WriteString(p.Text)
	}
	return &llm.Result{Type: llm.ResultText, Text: text.String()}, nil
}

// Complete sends one single-turn completion request. The system
// instruction is folded into the prompt text.
func (c *Client) Complete(ctx context.Context, req *llm.CompletionRequest) (string, error) {
	topP := 0.8
	body := &generateBody{
		Contents: []content{
			{Parts: []part{{Text: req.System + "\n\n" + req.Prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     0.2,
			MaxOutputTokens: 256,
			TopP:            &topP,
		},
	}

	resp, err := c.post(ctx, req.Model, req.APIKey, body)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &domain.EmptyResponseError{Provider: c.label}
	}
	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}

func (c *Client) post(ctx context.Context, model, apiKey string, body *generateBody) (*generateResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, model, apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
			Provider: c.label,
			Status:   httpResp.StatusCode,
			Body:     string(respBody),
		}
	}

	var resp generateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// translateConversation maps canonical turns onto the parts shape.
// Tool results ride as functionResponse parts on user-role content.
func translateConversation(messages []llm.Turn) []content {
	contents := make([]content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleUser:
			contents = append(contents, content{Role: "user", Parts: []part{{Text: turnText(msg)}}})
		case llm.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				parts := make([]part, 0, len(msg.ToolCalls))
				for _, call := range msg.ToolCalls {
					var args map[string]any
					_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
					parts = append(parts, part{FunctionCall: &functionCall{
						Name: call.Function.Name,
						Args: args,
					}})
				}
				contents = append(contents, content{Role: "model", Parts: parts})
			} else {
				contents = append(contents, content{Role: "model", Parts: []part{{Text: turnText(msg)}}})
			}
		case llm.RoleTool:
			contents = append(contents, content{Role: "user", Parts: []part{{
				FunctionResponse: &functionResponse{
					Name:     "tool_response",
					Response: map[string]any{"result": turnText(msg)},
				},
			}}})
		}
	}
	return contents
}

func translateTools(schemas []llm.ToolSchema) []functionDeclaration {
	declarations := make([]functionDeclaration, len(schemas))
	for i, schema := range schemas {
		declarations[i] = functionDeclaration{
			Name:        schema.Name,
			Description: schema.Description,
			Parameters:  upperTypes(schema.Parameters),
		}
	}
	return declarations
}

// upperTypes rewrites JSON-schema "type" values to the backend's
// uppercase convention ("object" -> "OBJECT") without touching the
// neutral schema.
func upperTypes(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for key, value := range schema {
		switch typed := value.(type) {
		case string:
			if key == "type" {
				out[key] = strings.ToUpper(typed)
				continue
			}
			out[key] = typed
		case map[string]any:
			out[key] = upperTypes(typed)
		default:
			out[key] = value
		}
	}
	return out
}

func turnText(turn llm.Turn) string {
	if turn.Content == nil {
		return ""
	}
	return *turn.Content
}
