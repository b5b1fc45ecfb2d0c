// Package sse writes Server-Sent Events responses: each event is a
// "data: " prefixed JSON payload followed by a blank line, flushed
// immediately so clients see events as they happen.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Writer streams events over one HTTP response. Safe for concurrent
// use: event writes and keepalives may come from different goroutines
// and each frame stays intact.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares the response for event streaming and returns a
// writer, or false when the underlying connection cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &Writer{w: w, flusher: flusher}, true
}

// WriteEvent JSON-encodes the payload and writes one event frame.
func (s *Writer) WriteEvent(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment line and flushes. Lines
// starting with ':' are ignored by clients; proxies see traffic and
// keep the connection open.
func (s *Writer) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}
