package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nilsharvey/anthrogate/internal/schema"
)

func TestSSEWriter_WriteEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := NewSSEWriter(rec)
	if err != nil {
		t.Fatalf("NewSSEWriter: %v", err)
	}

	if err := sse.WriteEvent(schema.NewMessageStopEvent()); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}

	body := rec.Body.String()
	wantLines := []string{"event: message_stop", `data: {"type":"message_stop"}`, ""}
	gotLines := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	if len(gotLines) != len(wantLines) {
		t.Fatalf("unexpected line count: got %q want %q", gotLines, wantLines)
	}
	for i := range wantLines {
		if gotLines[i] != wantLines[i] {
			t.Fatalf("line %d: got %q want %q", i, gotLines[i], wantLines[i])
		}
	}

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type: %q", ct)
	}
}

func TestSSEWriter_NoDoneTrailer(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := NewSSEWriter(rec)
	if err != nil {
		t.Fatalf("NewSSEWriter: %v", err)
	}
	if err := sse.WriteEvent(schema.NewContentBlockStopEvent(0)); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if strings.Contains(rec.Body.String(), "[DONE]") {
		t.Fatal("no [DONE] trailer should ever be written in the Anthropic direction")
	}
}

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	if _, err := NewSSEWriter(&nonFlushingWriter{header: make(http.Header)}); err == nil {
		t.Fatal("expected an error when the ResponseWriter doesn't implement http.Flusher")
	}
}

// nonFlushingWriter implements only http.ResponseWriter, deliberately
// omitting Flush so NewSSEWriter's capability check can be exercised.
type nonFlushingWriter struct {
	header http.Header
	status int
}

func (w *nonFlushingWriter) Header() http.Header         { return w.header }
func (w *nonFlushingWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *nonFlushingWriter) WriteHeader(status int)      { w.status = status }
