// Package debugsink implements the write-only request/response dump
// collaborator referenced by spec.md §5 ("Debug sinks, if any, are external
// collaborators invoked through a write-only interface."). It is not
// present as a named component in the teacher; its shape (interface-seamed,
// failure-tolerant, slog-reported) follows the teacher's general style of
// small composable collaborators (e.g. proxy.Recovery, proxy.Logging).
package debugsink

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Record is one logged request/response pair.
type Record struct {
	Timestamp    time.Time       `json:"timestamp"`
	RequestID    string          `json:"request_id"`
	AnthropicReq json.RawMessage `json:"anthropic_request,omitempty"`
	OpenAIReq    json.RawMessage `json:"openai_request,omitempty"`
	OpenAIResp   json.RawMessage `json:"openai_response,omitempty"`
	Err          string          `json:"error,omitempty"`
}

// Sink accepts Records for offline debugging. Write never blocks the
// request path on I/O failure: errors are logged, not returned, per the
// write-only, best-effort contract.
type Sink interface {
	Write(ctx context.Context, rec Record)
}

// Noop discards every record. It is the default sink when no debug file is
// configured.
type Noop struct{}

func (Noop) Write(context.Context, Record) {}

// FileSink appends newline-delimited JSON records to a file.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// NewFileSink opens (creating if necessary) path for appending.
func NewFileSink(path string, logger *slog.Logger) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{file: f, logger: logger}, nil
}

// Write appends rec as one JSON line. Marshal or write failures are logged
// and swallowed: a broken debug sink must never fail the request it's
// observing.
func (s *FileSink) Write(ctx context.Context, rec Record) {
	line, err := json.Marshal(rec)
	if err != nil {
		s.logger.WarnContext(ctx, "debugsink: marshal failed", "error", err)
		return
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		s.logger.WarnContext(ctx, "debugsink: write failed", "error", err)
	}
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
