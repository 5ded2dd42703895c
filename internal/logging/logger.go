// Package logging wraps a process-wide zerolog logger.
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("addr", addr).Msg("http server starting")
//	logging.Ctx(r.Context()).Warn().Msg("login rejected")
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config selects level and output format.
type Config struct {
	// Level is one of trace, debug, info, warn, error, fatal, disabled.
	Level string
	// Format is json or console.
	Format string
	Output io.Writer
}

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

//nolint:gochecknoinits // logging must work before Init runs
func init() {
	Init(Config{})
}

// Init (re)configures the global logger.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}
	zerolog.TimeFieldFormat = time.RFC3339

	l := zerolog.New(out).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()

	mu.Lock()
	log = l
	mu.Unlock()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger. Intended for tests.
//
//nolint:gocritic // zerolog.Logger is passed by value by design of the library
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
}

func Debug() *zerolog.Event { l := Logger(); return l.Debug() }
func Info() *zerolog.Event  { l := Logger(); return l.Info() }
func Warn() *zerolog.Event  { l := Logger(); return l.Warn() }
func Error() *zerolog.Event { l := Logger(); return l.Error() }
func Fatal() *zerolog.Event { l := Logger(); return l.Fatal() }

// Ctx returns the global logger annotated with the request id carried by ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger()
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}

type requestIDKey struct{}

// NewRequestID returns a fresh request id.
func NewRequestID() string {
	return uuid.NewString()
}

// ContextWithRequestID attaches id to ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
