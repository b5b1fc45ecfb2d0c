// Package inline supplies single-candidate "ghost text" completions
// while the user types. Triggers are debounced, only the newest
// trigger's request may complete, and every failure is silent: a
// missing suggestion is never an error the user sees.
package inline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"editron/internal/llm"
)

const (
	// DefaultDebounce is the delay between the last trigger and the
	// completion request.
	DefaultDebounce = 1500 * time.Millisecond

	// MinPrefixLength is the minimum trimmed length of the text before
	// the cursor; shorter prefixes skip the request to avoid noisy
	// completions on near-empty lines.
	MinPrefixLength = 3

	// Context window around the cursor, in lines.
	linesBefore = 20
	linesAfter  = 5

	// cursorMarker marks the cursor position inside the prompt.
	cursorMarker = "█"
)

// Completer is the completion dependency. Satisfied by
// llm.CompletionService.
type Completer interface {
	Complete(ctx context.Context, req *llm.CompleteRequest) (string, error)
}

// Trigger is one keystroke/cursor event: the document content, the
// cursor position (zero-based line, zero-based column measured in
// bytes within the line), and the request routing parameters.
type Trigger struct {
	Content    string
	Line       int
	Column     int
	Language   string
	Provider   string
	UserAPIKey string
}

// Engine debounces triggers and delivers at most one candidate per
// settled trigger via the apply callback. Latest-wins: a newer trigger
// cancels the pending one outright, and a cancelled request's response
// is discarded even if it arrives.
type Engine struct {
	completer Completer
	debounce  time.Duration
	apply     func(candidate string)
	logger    *slog.Logger

	mu         sync.Mutex
	enabled    bool
	generation uint64
	cancel     context.CancelFunc
	timer      *time.Timer
}

// NewEngine creates an engine. apply receives each accepted candidate;
// it is invoked from the engine's internal goroutine with the engine
// lock held and must not call back into the engine.
func NewEngine(completer Completer, debounce time.Duration, apply func(candidate string), logger *slog.Logger) *Engine {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Engine{
		completer: completer,
		debounce:  debounce,
		apply:     apply,
		logger:    logger,
		enabled:   true,
	}
}

// SetEnabled toggles the feature. Disabling also cancels any pending
// request.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
	if !enabled {
		e.cancelPendingLocked()
	}
}

// Trigger registers a typing event. The debounce delay restarts and
// any in-flight request from an older trigger is cancelled.
func (e *Engine) Trigger(trigger Trigger) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelPendingLocked()

	if !e.enabled {
		return
	}
	if !hasUsablePrefix(trigger.Content, trigger.Line, trigger.Column) {
		return
	}

	e.generation++
	generation := e.generation

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.timer = time.AfterFunc(e.debounce, func() {
		e.request(ctx, generation, trigger)
	})
}

// Stop cancels any pending trigger. The engine can be triggered again
// afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelPendingLocked()
}

func (e *Engine) cancelPendingLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) request(ctx context.Context, generation uint64, trigger Trigger) {
	if ctx.Err() != nil {
		return
	}

	completion, err := e.completer.Complete(ctx, &llm.CompleteRequest{
		Prompt:     BuildPrompt(trigger.Content, trigger.Line, trigger.Column),
		Language:   trigger.Language,
		Provider:   trigger.Provider,
		UserAPIKey: trigger.UserAPIKey,
	})
	if err != nil {
		// Best-effort affordance: failures stay silent.
		e.logger.Debug("inline completion failed", "error", err)
		return
	}

	candidate := StripFence(strings.TrimSpace(completion))
	if candidate == "" {
		return
	}

	// The staleness check and apply happen under one lock so a newer
	// trigger cannot slip in between them; a superseded request's
	// answer must never reach the document.
	e.mu.Lock()
	defer e.mu.Unlock()
	if generation != e.generation || ctx.Err() != nil {
		return
	}

	e.apply(candidate)
}

// hasUsablePrefix reports whether the text before the cursor is long
// enough to warrant a completion.
func hasUsablePrefix(content string, line, column int) bool {
	lines := strings.Split(content, "\n")
	if line < 0 || line >= len(lines) {
		return false
	}
	current := lines[line]
	if column < 0 || column > len(current) {
		return false
	}
	return len(strings.TrimSpace(current[:column])) >= MinPrefixLength
}

// BuildPrompt extracts the context window around the cursor and marks
// the cursor position inline. The line holding the cursor is truncated
// at the cursor so the model continues from exactly there.
func BuildPrompt(content string, line, column int) string {
	lines := strings.Split(content, "\n")
	if line < 0 || line >= len(lines) {
		return ""
	}
	if column < 0 || column > len(lines[line]) {
		column = len(lines[line])
	}

	start := line - linesBefore
	if start < 0 {
		start = 0
	}
	end := line + linesAfter
	if end > len(lines)-1 {
		end = len(lines) - 1
	}

	window := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		if i == line {
			window = append(window, lines[i][:column]+cursorMarker)
		} else {
			window = append(window, lines[i])
		}
	}
	return strings.Join(window, "\n")
}

// StripFence removes a markdown code-fence wrapper: the leading
// delimiter line and, when present, a trailing delimiter-only line.
// Unfenced text passes through untouched.
func StripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
