package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	Info().Msg("dropped")
	Warn().Str("component", "gate").Msg("kept")

	out := strings.TrimSpace(buf.String())
	require.NotEmpty(t, out)
	assert.NotContains(t, out, "dropped")

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "gate", line["component"])
	assert.Equal(t, "kept", line["message"])
}

func TestCtxAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "req-42")
	Ctx(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestNewRequestIDIsUnique(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
	assert.Equal(t, "warn", parseLevel("warning").String())
	assert.Equal(t, "info", parseLevel("bogus").String())
}
