package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"editron/internal/agent"
	"editron/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	result     *llm.Result
	completion string
	err        error
	delay      time.Duration
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.Result, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.completion, nil
}

func newRegistry(p llm.Provider, apiKey string) *llm.Registry {
	registry := &llm.Registry{}
	registry.Register(&llm.Entry{
		Spec: llm.Spec{
			ID:              "fake",
			Label:           "Fake",
			ChatModel:       "fake-chat",
			CompletionModel: "fake-completion",
			APIKey:          apiKey,
		},
		Provider: p,
	})
	return registry
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestChatHandler(t *testing.T) {
	logger := discardLogger()

	t.Run("missing messages is a 400", func(t *testing.T) {
		registry := newRegistry(&fakeProvider{}, "key")
		h := NewChatHandler(llm.NewChatService(registry, true, logger), logger)

		rec := postJSON(t, h.Stream, `{"provider":"fake"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("Content-Type = %q", ct)
		}
	})

	t.Run("missing credential is a 400 naming the provider", func(t *testing.T) {
		registry := newRegistry(&fakeProvider{}, "")
		h := NewChatHandler(llm.NewChatService(registry, true, logger), logger)

		rec := postJSON(t, h.Stream, `{"provider":"fake","messages":[{"role":"user","content":"hi"}]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Fake API key not configured") {
			t.Fatalf("body = %s", rec.Body.String())
		}
	})

	t.Run("text response streams as SSE frames", func(t *testing.T) {
		registry := newRegistry(&fakeProvider{result: &llm.Result{Type: llm.ResultText, Text: "hello"}}, "key")
		h := NewChatHandler(llm.NewChatService(registry, true, logger), logger)

		rec := postJSON(t, h.Stream, `{"provider":"fake","messages":[{"role":"user","content":"hi"}]}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
			t.Fatalf("Content-Type = %q", ct)
		}

		body := rec.Body.String()
		want := "data: {\"type\":\"text\",\"content\":\"hello\"}\n\ndata: {\"type\":\"done\"}\n\n"
		if body != want {
			t.Fatalf("body = %q, want %q", body, want)
		}
	})

	t.Run("tool calls stream with parsed arguments", func(t *testing.T) {
		registry := newRegistry(&fakeProvider{result: &llm.Result{
			Type: llm.ResultToolCalls,
			ToolCalls: []llm.ToolCall{{
				ID:   "call_1",
				Type: "function",
				Function: llm.FunctionCall{
					Name:      "read_file",
					Arguments: `{"path":"main.go"}`,
				},
			}},
		}}, "key")
		h := NewChatHandler(llm.NewChatService(registry, true, logger), logger)

		rec := postJSON(t, h.Stream, `{"provider":"fake","messages":[{"role":"user","content":"hi"}]}`)

		body := rec.Body.String()
		if !strings.Contains(body, `"type":"tool_call"`) {
			t.Fatalf("missing tool_call frame: %s", body)
		}
		if !strings.Contains(body, `"path":"main.go"`) {
			t.Fatalf("arguments not decoded: %s", body)
		}
	})

	t.Run("provider failure becomes an in-stream error event", func(t *testing.T) {
		registry := newRegistry(&fakeProvider{err: context.DeadlineExceeded}, "key")
		h := NewChatHandler(llm.NewChatService(registry, true, logger), logger)

		rec := postJSON(t, h.Stream, `{"provider":"fake","messages":[{"role":"user","content":"hi"}]}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"type":"error"`) {
			t.Fatalf("body = %s", rec.Body.String())
		}
	})
}

func TestCompletionHandler(t *testing.T) {
	logger := discardLogger()

	t.Run("missing prompt is a 400", func(t *testing.T) {
		registry := newRegistry(&fakeProvider{completion: "x"}, "key")
		h := NewCompletionHandler(llm.NewCompletionService(registry, logger), logger)

		rec := postJSON(t, h.Complete, `{"provider":"fake"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("happy path returns the trimmed candidate", func(t *testing.T) {
		registry := newRegistry(&fakeProvider{completion: "  return nil\n"}, "key")
		h := NewCompletionHandler(llm.NewCompletionService(registry, logger), logger)

		rec := postJSON(t, h.Complete, `{"provider":"fake","prompt":"func main() {"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp["completion"] != "return nil" {
			t.Fatalf("completion = %q", resp["completion"])
		}
	})
}

func TestAgentHandler(t *testing.T) {
	logger := discardLogger()

	t.Run("missing message is a 400", func(t *testing.T) {
		registry := newRegistry(&fakeProvider{}, "key")
		loop := agent.NewLoop(llm.NewChatService(registry, true, logger), agent.DefaultMaxRounds, logger)
		h := NewAgentHandler(loop, logger)

		rec := postJSON(t, h.Run, `{"provider":"fake","tree":{"folderName":"root","items":[]}}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("text-only run converges with a done frame", func(t *testing.T) {
		registry := newRegistry(&fakeProvider{result: &llm.Result{Type: llm.ResultText, Text: "All set."}}, "key")
		loop := agent.NewLoop(llm.NewChatService(registry, true, logger), agent.DefaultMaxRounds, logger)
		h := NewAgentHandler(loop, logger)

		rec := postJSON(t, h.Run, `{"provider":"fake","message":"tidy up","tree":{"folderName":"root","items":[]}}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		body := rec.Body.String()
		if !strings.Contains(body, `"type":"text","content":"All set."`) {
			t.Fatalf("missing text frame: %s", body)
		}
		if !strings.Contains(body, `"type":"done","state":"converged"`) {
			t.Fatalf("missing done frame: %s", body)
		}
		if !strings.Contains(body, `"tree":{"folderName":"root"`) {
			t.Fatalf("done frame missing tree: %s", body)
		}
	})

	t.Run("keepalive comments cover slow model rounds", func(t *testing.T) {
		provider := &fakeProvider{
			result: &llm.Result{Type: llm.ResultText, Text: "Done."},
			delay:  60 * time.Millisecond,
		}
		registry := newRegistry(provider, "key")
		loop := agent.NewLoop(llm.NewChatService(registry, true, logger), agent.DefaultMaxRounds, logger)
		h := NewAgentHandler(loop, logger)
		h.keepAlive = 10 * time.Millisecond

		rec := postJSON(t, h.Run, `{"provider":"fake","message":"tidy up","tree":{"folderName":"root","items":[]}}`)

		body := rec.Body.String()
		if !strings.Contains(body, ": keepalive\n\n") {
			t.Fatalf("no keepalive comment during slow round: %s", body)
		}
		// Interleaved keepalives must not corrupt event frames.
		if !strings.Contains(body, "data: {\"type\":\"text\",\"content\":\"Done.\"}\n\n") {
			t.Fatalf("text frame corrupted: %s", body)
		}
		if !strings.Contains(body, `"type":"done","state":"converged"`) {
			t.Fatalf("missing done frame: %s", body)
		}
	})
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
