package observability

import (
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/log"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range cases {
		got, err := parseLevel(tc.name)
		if err != nil {
			t.Fatalf("parseLevel(%q): %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestParseLevel_RejectsUnknown(t *testing.T) {
	if _, err := parseLevel("verbose"); err == nil {
		t.Fatal("expected an error for an unrecognized level name")
	}
}

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		level slog.Level
		want  log.Severity
	}{
		{slog.LevelDebug, log.SeverityDebug},
		{slog.LevelInfo, log.SeverityInfo},
		{slog.LevelWarn, log.SeverityWarn},
		{slog.LevelError, log.SeverityError},
	}
	for _, tc := range cases {
		if got := severityFor(tc.level); got != tc.want {
			t.Errorf("severityFor(%v) = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestNewExporter_RejectsUnknownFormat(t *testing.T) {
	if _, err := newExporter(Format("bogus")); err == nil {
		t.Fatal("expected an error for an unrecognized format")
	}
}

func TestNewExporter_DefaultsToTextForEmptyFormat(t *testing.T) {
	exp, err := newExporter(Format(""))
	if err != nil {
		t.Fatalf("newExporter(\"\"): %v", err)
	}
	if exp == nil {
		t.Fatal("expected a non-nil exporter for the empty format")
	}
}

func TestInstrument_RejectsInvalidLevel(t *testing.T) {
	if _, err := Instrument("not-a-level", FormatText); err == nil {
		t.Fatal("expected an error for an invalid log level")
	}
}

func TestInstrument_InstallsShutdownFunc(t *testing.T) {
	shutdown, err := Instrument("info", FormatJSON)
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a non-nil shutdown func")
	}
	if err := shutdown(t.Context()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
