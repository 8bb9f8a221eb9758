package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nilsharvey/anthrogate/internal/apierror"
)

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeAPIError writes apiErr as the Anthropic error envelope, using its
// HTTPStatus for the response status line.
func writeAPIError(ctx context.Context, w http.ResponseWriter, apiErr *apierror.Error) {
	writeJSON(ctx, w, apiErr.ToEnvelope(), apiErr.HTTPStatus)
}
