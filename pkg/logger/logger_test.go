package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevel(t *testing.T) {
	l := New("debug")
	if l.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", l.GetLevel())
	}

	l = New("nonsense")
	if l.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", l.GetLevel())
	}

	l = New("")
	if l.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %s", l.GetLevel())
	}
}

func TestNewWithWriterEmitsTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info")
	l.Info().Str("symbol", "R_100").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"symbol":"R_100"`) || !strings.Contains(out, `"time"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}
