package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/nilsharvey/anthrogate/internal/debugsink"
	"github.com/nilsharvey/anthrogate/internal/proxy"
	"github.com/nilsharvey/anthrogate/internal/upstream"
)

// App orchestrates the lifecycle of the ingress server and its collaborators.
type App struct {
	cfg   *Config
	proxy *proxy.Proxy
	debug closer
}

// closer is the one method App needs from an opened debug sink.
type closer interface {
	Close() error
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := cfg.Credential.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	debug, debugCloser, err := newDebugSink(cfg.DebugFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create debug sink: %w", err)
	}

	client := upstream.New(cfg.Upstream.BaseURL, nil)
	handler := &proxy.MessagesHandler{
		Credentials:   store,
		Upstream:      client,
		UpstreamModel: cfg.Upstream.Model,
		Debug:         debug,
	}

	proxyServer := proxy.New(handler, slog.Default())

	return &App{
		cfg:   cfg,
		proxy: proxyServer,
		debug: debugCloser,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting proxy server", "address", address)
	proxyErrCh, err := a.proxy.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	if a.debug != nil {
		shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
			return a.debug.Close()
		})
	}

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// newDebugSink builds the configured debugsink.Sink. An empty path disables
// it (Noop); otherwise a FileSink is opened and also returned as a closer
// for the shutdown-funcs list.
func newDebugSink(path string) (debugsink.Sink, closer, error) {
	if path == "" {
		return debugsink.Noop{}, nil, nil
	}
	sink, err := debugsink.NewFileSink(path, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return sink, sink, nil
}
