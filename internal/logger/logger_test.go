package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevel(t *testing.T) {
	if got := New("debug", "").GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %s", got)
	}
	if got := New("nonsense", "").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", got)
	}
	if got := New("", "").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %s", got)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")

	l := New("info", path)
	l.Info().Str("record_id", "r1").Msg("comment added")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"record_id":"r1"`) {
		t.Fatalf("log line missing: %s", b)
	}
}
