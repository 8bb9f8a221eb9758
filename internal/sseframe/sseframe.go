package sseframe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nilsharvey/anthrogate/internal/schema"
)

// maxLineSize bounds a single buffered SSE line. Tool call argument JSON can
// be large, so this is set well above bufio.Scanner's 64KiB default.
const maxLineSize = 1 << 20

// doneMarker is the sentinel upstream providers emit to terminate a stream
// ahead of (or instead of) connection close.
const doneMarker = "[DONE]"

// ErrDone is returned by Next once the [DONE] marker has been read. It is
// not itself an error condition; callers treat it as end-of-stream.
var ErrDone = errors.New("sseframe: [DONE] marker received")

// Reader reassembles bytes from an upstream SSE body into decoded
// ChatCompletionChunk frames, tolerating arbitrary read-boundary chunking
// from the underlying transport (http.Response.Body makes no promise that
// a single line — let alone a single event — arrives in one Read).
type Reader struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
}

// New wraps body for frame-at-a-time reading. logger receives one warning
// per malformed data line; a nil logger discards them.
func New(body io.Reader, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(bufio.ScanLines)
	return &Reader{scanner: scanner, logger: logger}
}

// Next returns the next decoded chunk. It returns io.EOF when the body is
// exhausted cleanly, ErrDone when the [DONE] marker is read, and ctx.Err()
// if ctx is already canceled when the next line is about to be scanned (a
// Read blocked on the body is not interrupted by ctx). Lines that are not
// data frames (blank lines,
// comments, other SSE fields) are skipped silently; data lines that fail
// JSON decoding are skipped with a logged warning, per the framer's
// tolerant-of-garbage-lines contract.
func (r *Reader) Next(ctx context.Context) (*schema.ChatCompletionChunk, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		payload, err := r.nextDataPayload()
		if err != nil {
			return nil, err
		}
		if payload == nil {
			continue
		}

		if bytes.Equal(bytes.TrimSpace(payload), []byte(doneMarker)) {
			return nil, ErrDone
		}

		var chunk schema.ChatCompletionChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			r.logger.Warn("sseframe: skipping malformed data line", "error", err)
			continue
		}
		return &chunk, nil
	}
}

// nextDataPayload scans forward to the next "data:" line and returns its
// trimmed value, or (nil, nil) if the line scanned was not a data line (the
// caller loops). Returns io.EOF once the underlying reader is exhausted.
func (r *Reader) nextDataPayload() ([]byte, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("sseframe: reading stream: %w", err)
		}
		return nil, io.EOF
	}

	line := r.scanner.Bytes()
	line = bytes.TrimRight(line, "\r")

	if len(line) == 0 {
		return nil, nil // event terminator, no payload buffered for this framer
	}

	rest, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		return nil, nil // comment or other SSE field, not a data line
	}
	rest = bytes.TrimPrefix(rest, []byte(" "))
	return append([]byte(nil), rest...), nil
}
