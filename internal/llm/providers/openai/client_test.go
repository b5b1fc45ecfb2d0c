package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"editron/internal/domain"
	"editron/internal/llm"
)

func textResponse(text string) string {
	return `{"choices":[{"message":{"content":` + mustJSON(text) + `}}]}`
}

func mustJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func generateRequest() *llm.GenerateRequest {
	return &llm.GenerateRequest{
		Messages: []llm.Turn{llm.TextTurn(llm.RoleUser, "make hello.txt")},
		System:   "You are the assistant.",
		Tools:    llm.EditorToolSchemas(true),
		Model:    "test-model",
		APIKey:   "secret-key",
	}
}

func TestGenerate(t *testing.T) {
	t.Run("request carries the expected wire shape", func(t *testing.T) {
		var captured map[string]any
		var auth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
			w.Write([]byte(textResponse("done")))
		}))
		defer server.Close()

		client := NewClient("Groq", server.URL)
		result, err := client.Generate(context.Background(), generateRequest())
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if result.Type != llm.ResultText || result.Text != "done" {
			t.Fatalf("result = %+v", result)
		}

		if auth != "Bearer secret-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if captured["model"] != "test-model" {
			t.Errorf("model = %v", captured["model"])
		}
		if captured["tool_choice"] != "auto" {
			t.Errorf("tool_choice = %v", captured["tool_choice"])
		}
		if captured["parallel_tool_calls"] != false {
			t.Errorf("parallel_tool_calls = %v", captured["parallel_tool_calls"])
		}
		if captured["temperature"] != 0.3 {
			t.Errorf("temperature = %v", captured["temperature"])
		}
		if captured["max_tokens"] != float64(4096) {
			t.Errorf("max_tokens = %v", captured["max_tokens"])
		}

		messages := captured["messages"].([]any)
		first := messages[0].(map[string]any)
		if first["role"] != "system" || first["content"] != "You are the assistant." {
			t.Errorf("system message = %v", first)
		}
	})

	t.Run("tool calls pass through, blank ids get local ones", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"content":null,"tool_calls":[
				{"id":"orig_1","type":"function","function":{"name":"edit_file","arguments":"{\"path\":\"a.txt\",\"content\":\"x\"}"}},
				{"id":"","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"b.txt\"}"}}
			]}}]}`))
		}))
		defer server.Close()

		client := NewClient("Groq", server.URL)
		result, err := client.Generate(context.Background(), generateRequest())
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if result.Type != llm.ResultToolCalls || len(result.ToolCalls) != 2 {
			t.Fatalf("result = %+v", result)
		}
		if result.ToolCalls[0].ID != "orig_1" {
			t.Errorf("first id = %q, want orig_1", result.ToolCalls[0].ID)
		}
		if !strings.HasPrefix(result.ToolCalls[1].ID, "call_") {
			t.Errorf("second id = %q, want generated call_ id", result.ToolCalls[1].ID)
		}
	})

	t.Run("rate limit retries then succeeds", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				w.Header().Set("Retry-After", "0.01")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(textResponse("recovered")))
		}))
		defer server.Close()

		client := NewClient("Groq", server.URL)
		start := time.Now()
		result, err := client.Generate(context.Background(), generateRequest())
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if result.Text != "recovered" {
			t.Fatalf("text = %q", result.Text)
		}
		if attempts != 2 {
			t.Fatalf("attempts = %d, want 2", attempts)
		}
		if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
			t.Errorf("retried after %v, expected at least the Retry-After delay", elapsed)
		}
	})

	t.Run("persistent rate limiting fails after three attempts", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewClient("Groq", server.URL)
		_, err := client.Generate(context.Background(), generateRequest())

		var upstream *domain.UpstreamError
		if !errors.As(err, &upstream) || upstream.Status != http.StatusTooManyRequests {
			t.Fatalf("err = %v", err)
		}
		if attempts != 3 {
			t.Fatalf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("server errors do not retry", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		}))
		defer server.Close()

		client := NewClient("Groq", server.URL)
		_, err := client.Generate(context.Background(), generateRequest())

		var upstream *domain.UpstreamError
		if !errors.As(err, &upstream) || upstream.Status != http.StatusInternalServerError {
			t.Fatalf("err = %v", err)
		}
		if upstream.Body != "boom" {
			t.Errorf("body = %q", upstream.Body)
		}
		if attempts != 1 {
			t.Fatalf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("empty choices is an empty response error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		client := NewClient("Groq", server.URL)
		_, err := client.Generate(context.Background(), generateRequest())

		var empty *domain.EmptyResponseError
		if !errors.As(err, &empty) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestComplete(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(textResponse("return nil")))
	}))
	defer server.Close()

	client := NewClient("Mistral", server.URL)
	text, err := client.Complete(context.Background(), &llm.CompletionRequest{
		Prompt: "func main() {",
		System: "Complete the code.",
		Model:  "codestral-latest",
		APIKey: "k",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "return nil" {
		t.Fatalf("text = %q", text)
	}

	if captured["temperature"] != 0.2 {
		t.Errorf("temperature = %v", captured["temperature"])
	}
	if captured["max_tokens"] != float64(256) {
		t.Errorf("max_tokens = %v", captured["max_tokens"])
	}
	if _, hasTools := captured["tools"]; hasTools {
		t.Error("completion request must not carry tools")
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"missing header", "", defaultRetryAfter},
		{"integer seconds", "2", 2 * time.Second},
		{"fractional seconds", "1.5", 1500 * time.Millisecond},
		{"garbage", "soon", defaultRetryAfter},
		{"negative", "-3", defaultRetryAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryDelay(tt.value); got != tt.want {
				t.Fatalf("retryDelay(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
