package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestConfigureHonoursEnv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	var buf bytes.Buffer
	logger := Configure(&buf)
	if Level() != slog.LevelDebug {
		t.Fatalf("level = %v", Level())
	}
	logger.Debug("sampling", "pages", 64)
	if !strings.Contains(buf.String(), "pages=64") {
		t.Fatalf("debug line missing: %q", buf.String())
	}

	SetLevel(slog.LevelWarn)
	buf.Reset()
	slog.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"DEBUG": slog.LevelDebug, "info": slog.LevelInfo, " Warning ": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("ParseLevel accepted garbage")
	}
}
