package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Proxy is the HTTP ingress server: one route translating Anthropic
// Messages API requests into OpenAI-compatible chat-completion calls, plus
// a health check.
type Proxy struct {
	router chi.Router
	server *http.Server
}

// Compile-time check that Proxy implements http.Handler.
var _ http.Handler = (*Proxy)(nil)

// New builds the router around handler (the ingress translation endpoint),
// wiring Recovery, request logging, request-ID propagation, and CORS ahead
// of it, plus an unauthenticated health check route.
func New(handler http.Handler, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Recovery)
	r.Use(Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "x-api-key", "anthropic-version"},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthCheck)
	r.Post("/v1/messages", handler.ServeHTTP)

	return &Proxy{router: r}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, map[string]string{"status": "ok"}, http.StatusOK)
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.router.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Startup errors (port in use, permission denied) are returned immediately;
// runtime errors are sent to the returned channel.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // long enough for a slow SSE stream
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		err := p.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs a graceful shutdown of the HTTP server.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	if err := p.server.Shutdown(ctx); err != nil {
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
