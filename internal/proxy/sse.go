package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nilsharvey/anthrogate/internal/schema"
)

// Pre-allocated byte slices for SSE formatting to eliminate allocations on every write.
var (
	sseEventPrefix = []byte("event: ")
	sseDataPrefix  = []byte("data: ")
	sseTerminator  = []byte("\n\n")
	sseNewline     = []byte("\n")
)

// SSEWriter wraps http.ResponseWriter with Server-Sent Events protocol methods.
// Handles JSON marshaling, event formatting, and flushing for streaming responses.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter validates flushing support and sets required SSE headers.
// Returns error if the ResponseWriter doesn't implement http.Flusher,
// which is required for streaming responses.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter doesn't implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream;charset=utf-8")
	w.Header().Set("Connection", "keep-alive")

	// Allow caller to override Cache-Control for custom caching strategies
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-cache")
	}

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent writes ev as an Anthropic SSE record: an "event: <type>" line
// naming ev.EventType(), followed by a "data: <json>" line and the blank
// line terminator. There is no [DONE] trailer in this direction:
// message_stop is the stream's own termination signal.
func (s *SSEWriter) WriteEvent(ev schema.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if _, err := s.w.Write(sseEventPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte(ev.EventType())); err != nil {
		return err
	}
	if _, err := s.w.Write(sseNewline); err != nil {
		return err
	}
	if _, err := s.w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}
