package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nilsharvey/anthrogate/internal/apierror"
	"github.com/nilsharvey/anthrogate/internal/credentials"
	"github.com/nilsharvey/anthrogate/internal/debugsink"
	"github.com/nilsharvey/anthrogate/internal/schema"
	"github.com/nilsharvey/anthrogate/internal/sseframe"
	"github.com/nilsharvey/anthrogate/internal/transducer"
	"github.com/nilsharvey/anthrogate/internal/transform"
	"github.com/nilsharvey/anthrogate/internal/upstream"
	"github.com/nilsharvey/anthrogate/internal/validate"
)

// maxRequestBodyBytes bounds the ingress body read, guarding against an
// unbounded client upload stalling a handler goroutine indefinitely.
const maxRequestBodyBytes = 10 << 20

// MessagesHandler implements the Anthropic Messages API ingress endpoint:
// validate → request_xform → upstream call → response_xform or
// framer+transducer, depending on whether the request asked to stream.
type MessagesHandler struct {
	Credentials   credentials.Store
	Upstream      *upstream.Client
	UpstreamModel string
	Debug         debugsink.Sink
}

var _ http.Handler = (*MessagesHandler)(nil)

func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
	if err != nil {
		writeAPIError(ctx, w, apierror.InvalidRequest("failed to read request body", ""))
		return
	}
	if len(body) > maxRequestBodyBytes {
		writeAPIError(ctx, w, apierror.InvalidRequest("request body too large", ""))
		return
	}

	req, apiErr := validate.Request(body)
	if apiErr != nil {
		writeAPIError(ctx, w, apiErr)
		return
	}

	apiKey, err := h.Credentials.Read(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read upstream credential", "error", err)
		writeAPIError(ctx, w, apierror.Internal(err))
		return
	}

	hasCacheControl := transform.HasCacheControl(req)
	openaiReq, err := transform.Request(req, h.UpstreamModel)
	if err != nil {
		slog.ErrorContext(ctx, "request transform failed", "error", err)
		writeAPIError(ctx, w, apierror.Internal(err))
		return
	}

	h.debugRequest(ctx, body, openaiReq)

	resp, err := h.Upstream.Send(ctx, openaiReq, apiKey, hasCacheControl)
	if err != nil {
		slog.ErrorContext(ctx, "upstream request failed", "error", err)
		writeAPIError(ctx, w, apierror.UpstreamUnavailable(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		h.forwardUpstreamError(ctx, w, resp)
		return
	}

	if req.Stream != nil && *req.Stream {
		h.streamResponse(ctx, w, resp.Body)
	} else {
		h.writeResponse(ctx, w, resp.Body)
	}
}

// forwardUpstreamError implements the §7 status-forwarding policy: 4xx
// responses are forwarded with their original body and status (the
// upstream's own error envelope reaches the client unmodified); 5xx is
// re-wrapped in the Anthropic envelope.
func (h *MessagesHandler) forwardUpstreamError(ctx context.Context, w http.ResponseWriter, resp *http.Response) {
	if resp.StatusCode < 500 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBodyBytes))
		if err != nil {
			writeAPIError(ctx, w, apierror.UpstreamUnavailable(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write(body); err != nil {
			slog.ErrorContext(ctx, "failed to forward upstream error body", "error", err)
		}
		return
	}

	writeAPIError(ctx, w, apierror.UpstreamUnavailable(fmt.Errorf("upstream returned status %d", resp.StatusCode)))
}

func (h *MessagesHandler) writeResponse(ctx context.Context, w http.ResponseWriter, body io.Reader) {
	var chatResp schema.ChatCompletionResponse
	if err := json.NewDecoder(body).Decode(&chatResp); err != nil {
		writeAPIError(ctx, w, apierror.MalformedUpstream(err))
		return
	}

	anthropicResp, apiErr := transform.Response(&chatResp, h.UpstreamModel)
	if apiErr != nil {
		writeAPIError(ctx, w, apiErr)
		return
	}

	writeJSON(ctx, w, anthropicResp, http.StatusOK)
}

func (h *MessagesHandler) streamResponse(ctx context.Context, w http.ResponseWriter, body io.Reader) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeAPIError(ctx, w, apierror.Internal(err))
		return
	}

	td := transducer.New(func(ev schema.Event) error {
		return sse.WriteEvent(ev)
	})

	frame := sseframe.New(body, slog.Default())
	for {
		if ctx.Err() != nil {
			// Client cancellation: stop emitting, no finalization attempted.
			return
		}

		chunk, err := frame.Next(ctx)
		if err != nil {
			if errors.Is(err, sseframe.ErrDone) || errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// Client cancellation surfaced as a read error: stop emitting,
				// no finalization attempted.
				return
			}
			slog.ErrorContext(ctx, "stream read failed", "error", err)
			break
		}

		if err := td.Feed(chunk); err != nil {
			slog.ErrorContext(ctx, "failed to emit stream event", "error", err)
			return
		}
		if td.Stopped() {
			return
		}
	}

	// Upstream ended (cleanly or via a dropped connection) without a
	// finish_reason: still produce a well-formed tail with a synthesized
	// end_turn stop_reason, per §4.5.5. Skipped on cancellation: no
	// finalization is attempted once the client has gone away.
	if ctx.Err() == nil {
		if err := td.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to finalize stream", "error", err)
		}
	}
}

func (h *MessagesHandler) debugRequest(ctx context.Context, anthropicBody []byte, openaiReq *schema.ChatCompletionRequest) {
	encoded, err := json.Marshal(openaiReq)
	if err != nil {
		return
	}
	h.Debug.Write(ctx, debugsink.Record{
		Timestamp:    time.Now(),
		AnthropicReq: append(json.RawMessage(nil), anthropicBody...),
		OpenAIReq:    encoded,
	})
}
