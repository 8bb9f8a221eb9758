package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/nilsharvey/anthrogate/internal/debugsink"
	"github.com/nilsharvey/anthrogate/internal/schema"
	"github.com/nilsharvey/anthrogate/internal/upstream"
)

type fakeCredentialStore struct {
	key string
	err error
}

func (f *fakeCredentialStore) Read(context.Context) (string, error) {
	return f.key, f.err
}

func newTestHandler(t *testing.T, upstreamHandler http.HandlerFunc) (*MessagesHandler, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(upstreamHandler)
	t.Cleanup(server.Close)
	return &MessagesHandler{
		Credentials:   &fakeCredentialStore{key: "sk-test"},
		Upstream:      upstream.New(server.URL, nil),
		UpstreamModel: "upstream-model",
		Debug:         debugsink.Noop{},
	}, server
}

const validRequestBody = `{
	"model": "claude-3-opus-20240229",
	"max_tokens": 256,
	"messages": [{"role": "user", "content": "hello"}]
}`

func TestMessagesHandler_NonStreaming(t *testing.T) {
	handler, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(schema.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "upstream-model",
			Choices: []schema.ChatChoice{
				{Message: schema.ChatResponseMessage{Content: strPtr("hi")}, FinishReason: "stop"},
			},
		})
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(validRequestBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp schema.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Model != "upstream-model" {
		t.Fatalf("expected the upstream's own model echoed back verbatim, got %s", resp.Model)
	}
}

// TestMessagesHandler_EchoesConfiguredModelWhenUpstreamOmitsIt covers the
// fallback path: some upstreams omit "model" from the response body.
func TestMessagesHandler_EchoesConfiguredModelWhenUpstreamOmitsIt(t *testing.T) {
	handler, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(schema.ChatCompletionResponse{
			ID: "chatcmpl-1",
			Choices: []schema.ChatChoice{
				{Message: schema.ChatResponseMessage{Content: strPtr("hi")}, FinishReason: "stop"},
			},
		})
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(validRequestBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp schema.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Model != "upstream-model" {
		t.Fatalf("expected the configured upstream model as a fallback, got %s", resp.Model)
	}
}

func TestMessagesHandler_InvalidRequestBody(t *testing.T) {
	handler, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be called for an invalid request")
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMessagesHandler_CredentialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be called when credentials fail to load")
	}))
	t.Cleanup(server.Close)

	handler := &MessagesHandler{
		Credentials:   &fakeCredentialStore{err: errCredentialUnavailable},
		Upstream:      upstream.New(server.URL, nil),
		UpstreamModel: "upstream-model",
		Debug:         debugsink.Noop{},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(validRequestBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

// TestMessagesHandler_ForwardsUpstream4xxVerbatim exercises the §7 policy:
// a 4xx upstream error is forwarded with its original body and status.
func TestMessagesHandler_ForwardsUpstream4xxVerbatim(t *testing.T) {
	upstreamBody := `{"error": {"type": "invalid_request_error", "message": "bad upstream request"}}`
	handler, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(upstreamBody))
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(validRequestBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected the upstream status to be forwarded, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != upstreamBody {
		t.Fatalf("expected the upstream body forwarded verbatim, got %s", rec.Body.String())
	}
}

// TestMessagesHandler_RewrapsUpstream5xx exercises the §7 policy: a 5xx
// upstream error is re-wrapped in the Anthropic envelope, not forwarded.
func TestMessagesHandler_RewrapsUpstream5xx(t *testing.T) {
	handler, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(validRequestBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected a re-wrapped 502, got %d", rec.Code)
	}
	var env struct {
		Type  string `json:"type"`
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("expected an Anthropic error envelope: %v", err)
	}
	if env.Error.Type != "api_error" {
		t.Fatalf("unexpected error kind: %s", env.Error.Type)
	}
}

func TestMessagesHandler_Streaming(t *testing.T) {
	sseBody := strings.Join([]string{
		`data: {"id":"x","model":"m","choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}`,
		"",
		`data: {"id":"x","model":"m","choices":[{"index":0,"delta":{"content":"hi"},"finish_reason":null}]}`,
		"",
		`data: {"id":"x","model":"m","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		"",
		`data: [DONE]`,
		"",
	}, "\n")

	handler, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sseBody))
	})

	streamingBody := `{
		"model": "claude-3-opus-20240229",
		"max_tokens": 256,
		"stream": true,
		"messages": [{"role": "user", "content": "hello"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(streamingBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected an SSE content type, got %q", ct)
	}

	var eventTypes []string
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventTypes = append(eventTypes, strings.TrimPrefix(line, "event: "))
		}
	}
	if strings.Contains(rec.Body.String(), "[DONE]") {
		t.Fatal("no [DONE] trailer should be emitted in the Anthropic direction")
	}
	if len(eventTypes) == 0 || eventTypes[len(eventTypes)-1] != "message_stop" {
		t.Fatalf("expected the stream to end with message_stop, got %v", eventTypes)
	}
}

// cancellingReader simulates a client-canceled upstream read: the first
// Read call returns context.Canceled, as net/http's transport does when the
// request context is canceled mid-body-read.
type cancellingReader struct{}

func (cancellingReader) Read([]byte) (int, error) { return 0, context.Canceled }

// TestMessagesHandler_StreamingCancellationEmitsNoFinalization exercises the
// §4.5.5/§5 cancellation contract: when the upstream read fails because the
// client went away, no message_delta/message_stop tail is emitted.
func TestMessagesHandler_StreamingCancellationEmitsNoFinalization(t *testing.T) {
	handler := &MessagesHandler{}
	rec := httptest.NewRecorder()

	handler.streamResponse(context.Background(), rec, cancellingReader{})

	if rec.Body.Len() != 0 {
		t.Fatalf("expected no events emitted on cancellation, got %q", rec.Body.String())
	}
}

func strPtr(s string) *string { return &s }

var errCredentialUnavailable = &staticErr{"credential unavailable"}

type staticErr struct{ msg string }

func (e *staticErr) Error() string { return e.msg }

func TestMaxRequestBodyBytes_Rejected(t *testing.T) {
	handler, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be called for an oversized body")
	})

	oversized := strings.Repeat("a", maxRequestBodyBytes+1)
	body := `{"model":"m","max_tokens":1,"messages":[{"role":"user","content":"` + oversized + `"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an oversized request body, got %d", rec.Code)
	}
}
