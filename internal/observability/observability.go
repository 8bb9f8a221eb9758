// Package observability wires the process's default slog logger to
// OpenTelemetry logs, with a severity floor and a pluggable exporter. It is
// called once at startup from the gateway command (cmd/gateway/commands),
// mirroring the teacher's observability.Instrument(logLevel, logFormat)
// call site in cmd/claudine/commands/root.go. The package body itself was
// not present in the retrieval pack (filtered out of the teacher's tree),
// so it is authored fresh here from the teacher's go.mod dependency set and
// that call-site contract.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Format selects the log exporter backend.
type Format string

const (
	// FormatText writes indented, pretty-printed JSON records to stdout
	// (default, local dev).
	FormatText Format = "text"
	// FormatJSON writes one JSON object per line to stdout.
	FormatJSON Format = "json"
	// FormatOTLPGRPC ships logs to an OTLP/gRPC collector.
	FormatOTLPGRPC Format = "otlp-grpc"
	// FormatOTLPHTTP ships logs to an OTLP/HTTP collector.
	FormatOTLPHTTP Format = "otlp-http"
)

// Instrument installs the process-wide slog default logger, bridged to an
// OpenTelemetry LoggerProvider built around the requested format, filtered
// to levelName and above. The returned shutdown func flushes and closes the
// exporter; callers should defer it (or invoke it from their shutdown-funcs
// list, per the teacher's app.App lifecycle pattern).
func Instrument(levelName string, format Format) (shutdown func(context.Context) error, err error) {
	level, err := parseLevel(levelName)
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(format)
	if err != nil {
		return nil, fmt.Errorf("observability: build exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(
			minsev.NewLogProcessor(
				sdklog.NewBatchProcessor(exporter),
				severityFor(level),
			),
		),
	)

	handler := otelslog.NewHandler("anthrogate", otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(handler))

	return provider.Shutdown, nil
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("observability: invalid log level %q: %w", name, err)
	}
	return level, nil
}

func severityFor(level slog.Level) log.Severity {
	switch {
	case level <= slog.LevelDebug:
		return log.SeverityDebug
	case level <= slog.LevelInfo:
		return log.SeverityInfo
	case level <= slog.LevelWarn:
		return log.SeverityWarn
	default:
		return log.SeverityError
	}
}

func newExporter(format Format) (sdklog.Exporter, error) {
	switch format {
	case FormatOTLPGRPC:
		return otlploggrpc.New(context.Background())
	case FormatOTLPHTTP:
		return otlploghttp.New(context.Background())
	case FormatJSON:
		return stdoutlog.New()
	case FormatText, "":
		return stdoutlog.New(stdoutlog.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("observability: unknown log format %q", format)
	}
}
