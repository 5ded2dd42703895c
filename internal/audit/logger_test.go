package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesJSONLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.log")
	l := NewLogger(path)
	l.nowFunc = func() time.Time { return time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC) }

	if err := l.Log(Event{Actor: "alice@example.com", Action: ActionLogin, Outcome: OutcomeSuccess, RemoteIP: "10.0.0.1"}); err != nil {
		t.Fatalf("Log() error: %v", err)
	}
	if err := l.Log(Event{Actor: "alice@example.com", Action: ActionLogout, Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("Log() second error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %d", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	if e.Actor != "alice@example.com" || e.Action != ActionLogin || e.Outcome != OutcomeSuccess {
		t.Fatalf("unexpected audit event content: %+v", e)
	}
	if e.At != "2026-02-16T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", e.At)
	}
}

func TestLoggerDisabled(t *testing.T) {
	var nilLogger *Logger
	if err := nilLogger.Log(Event{Action: ActionLogin}); err != nil {
		t.Fatalf("nil Logger.Log() error: %v", err)
	}
	if err := NewLogger("").Log(Event{Action: ActionLogin}); err != nil {
		t.Fatalf("disabled Logger.Log() error: %v", err)
	}
}
