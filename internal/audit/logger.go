// Package audit appends authentication events to a JSON-lines file.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	ActionLogin          = "auth.login"
	ActionLogout         = "auth.logout"
	ActionPasswordChange = "auth.password_change"
	ActionBootstrap      = "auth.bootstrap"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Event is one audit line. Actor is the identity claimed or proven by the
// request; it is never a password, hash or token.
type Event struct {
	At        string `json:"at"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	RemoteIP  string `json:"remote_ip,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type Logger struct {
	path    string
	nowFunc func() time.Time
	mu      sync.Mutex
}

// NewLogger returns a Logger appending to path. An empty path disables
// auditing.
func NewLogger(path string) *Logger {
	return &Logger{path: path, nowFunc: time.Now}
}

func (l *Logger) Log(e Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	if e.At == "" {
		e.At = l.nowFunc().UTC().Format(time.RFC3339)
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("mkdir audit log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open audit log file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write audit log entry: %w", err)
	}
	return nil
}
