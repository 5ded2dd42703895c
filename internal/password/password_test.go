package password

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = Params{N: 1 << 10, R: 8, P: 1, KeyLen: 64, SaltLen: 16}

func newFastHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(fastParams, 2)
	require.NoError(t, err)
	return h
}

func TestHashAndVerifyDefaultParams(t *testing.T) {
	stored, err := Hash("correct-horse")
	require.NoError(t, err)

	assert.True(t, Verify("correct-horse", stored))
	assert.False(t, Verify("wrong-horse", stored))
}

func TestHashFormat(t *testing.T) {
	h := newFastHasher(t)
	stored, err := h.Hash("s3cret")
	require.NoError(t, err)

	salt, key, ok := strings.Cut(stored, ":")
	require.True(t, ok)
	assert.Len(t, salt, 2*fastParams.SaltLen)
	assert.Len(t, key, 2*fastParams.KeyLen)
}

func TestHashIsSalted(t *testing.T) {
	h := newFastHasher(t)
	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("same-password", a))
	assert.True(t, h.Verify("same-password", b))
}

func TestVerifyRejectsOtherPasswords(t *testing.T) {
	h := newFastHasher(t)
	for _, pw := range []string{"a", "pässwörd", "correct horse battery staple", strings.Repeat("x", 300)} {
		stored, err := h.Hash(pw)
		require.NoError(t, err)
		assert.True(t, h.Verify(pw, stored), pw)
		assert.False(t, h.Verify(pw+"!", stored), pw)
		assert.False(t, h.Verify("", stored), pw)
	}
}

func TestVerifyMalformedStored(t *testing.T) {
	h := newFastHasher(t)
	good, err := h.Hash("pw")
	require.NoError(t, err)
	salt, key, _ := strings.Cut(good, ":")

	tests := []struct {
		name   string
		stored string
	}{
		{name: "empty", stored: ""},
		{name: "no separator", stored: salt + key},
		{name: "empty salt", stored: ":" + key},
		{name: "empty key", stored: salt + ":"},
		{name: "not hex", stored: salt + ":" + strings.Repeat("zz", fastParams.KeyLen)},
		{name: "short key", stored: salt + ":" + key[:len(key)-2]},
		{name: "long key", stored: salt + ":" + key + "00"},
		{name: "extra separator", stored: salt + ":" + key + ":00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, h.Verify("pw", tt.stored))
		})
	}
}

func TestHashEmptyPassword(t *testing.T) {
	h := newFastHasher(t)
	_, err := h.Hash("")
	assert.True(t, errors.Is(err, ErrEmptyPassword))
}

func TestNewHasherValidatesParams(t *testing.T) {
	_, err := NewHasher(Params{N: 1000, R: 8, P: 1, KeyLen: 64, SaltLen: 16}, 1)
	assert.Error(t, err)

	_, err = NewHasher(Params{N: 1024, R: 8, P: 1, KeyLen: 8, SaltLen: 16}, 1)
	assert.Error(t, err)

	_, err = NewHasher(fastParams, 0)
	assert.Error(t, err)
}

func TestContextVariants(t *testing.T) {
	h := newFastHasher(t)
	ctx := context.Background()

	stored, err := h.HashContext(ctx, "pw")
	require.NoError(t, err)
	assert.True(t, h.VerifyContext(ctx, "pw", stored))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, h.sem.Acquire(ctx, 2))
	defer h.sem.Release(2)

	_, err = h.HashContext(cancelled, "pw")
	assert.Error(t, err)
	assert.False(t, h.VerifyContext(cancelled, "pw", stored))
}
