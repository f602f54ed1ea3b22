package app

import (
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiRed + "error" + ansiReset + " " + ansiDim + "42ms" + ansiReset
	if got := stripANSI(in); got != "error 42ms" {
		t.Fatalf("stripANSI=%q", got)
	}
	if got := stripANSI("plain"); got != "plain" {
		t.Fatalf("stripANSI(plain)=%q", got)
	}
}

func TestColorizeDisabledPassesThrough(t *testing.T) {
	t.Parallel()

	if got := colorizeHTTPMethod("GET", false); got != "GET" {
		t.Fatalf("method=%q", got)
	}
	if got := colorizeStatusCode(503, false); got != "503" {
		t.Fatalf("status=%q", got)
	}
	if got := colorizeDurationMS(1200, false); got != "1200ms" {
		t.Fatalf("duration=%q", got)
	}
	if got := colorizeResult("server_error", false); got != "server_error" {
		t.Fatalf("result=%q", got)
	}
}

func TestConsoleHandler_RendersRecord(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	log := slog.New(newConsoleHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))

	log.Info("session.paired",
		"session_id", "01JEXAMPLEULID0000000000AA",
		"status", "completed",
		"note", "two words",
	)

	line := buf.String()
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("missing trailing newline: %q", line)
	}
	for _, want := range []string{
		"INFO ",
		"session.paired",
		"session_id=01JEXAMPLEULID0000000000AA",
		"status=completed",
		`note="two words"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}

	buf.Reset()
	log.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("debug record leaked through info level: %q", buf.String())
	}
}

func TestConsoleHandler_ShortensHTTPKeys(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	log := slog.New(newConsoleHandler(&buf, nil, false))

	log.Info("http.request", "status_class", "4xx", "duration_ms", int64(12))

	line := buf.String()
	if !strings.Contains(line, "class=4xx") || !strings.Contains(line, "duration=12ms") {
		t.Fatalf("line %q missing shortened keys", line)
	}
}
