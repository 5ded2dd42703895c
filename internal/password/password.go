// Package password turns plaintext passwords into storable scrypt credential
// hashes and checks candidates against them in constant time.
//
// A stored hash has the form
//
//	<salt>:<hex(derivedKey)>
//
// where salt is the hex text of SaltLen random bytes. The salt text itself is
// the scrypt salt input, so hashes produced by other implementations that
// follow the same convention verify here unchanged.
package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/sync/semaphore"
)

const separator = ":"

// ErrEmptyPassword is returned by Hash for an empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// Params are the scrypt cost parameters. Hashes carry no parameter tag, so a
// change here must ship together with a rehash of every stored credential.
type Params struct {
	N       int
	R       int
	P       int
	KeyLen  int
	SaltLen int
}

// DefaultParams: N=2^14, r=8, p=1, 64-byte key, 16-byte salt.
var DefaultParams = Params{N: 1 << 14, R: 8, P: 1, KeyLen: 64, SaltLen: 16}

func (p Params) validate() error {
	if p.N <= 1 || p.N&(p.N-1) != 0 {
		return fmt.Errorf("scrypt N must be a power of two > 1, got %d", p.N)
	}
	if p.R <= 0 || p.P <= 0 {
		return fmt.Errorf("scrypt r and p must be > 0")
	}
	if p.KeyLen < 16 {
		return fmt.Errorf("key length too short: %d", p.KeyLen)
	}
	if p.SaltLen < 16 {
		return fmt.Errorf("salt length too short: %d", p.SaltLen)
	}
	return nil
}

// Hasher derives and checks credential hashes. The number of derivations
// running at once through the *Context methods is bounded, since each one
// holds roughly 128*N*r bytes of memory.
type Hasher struct {
	params Params
	sem    *semaphore.Weighted
	rand   io.Reader
}

// NewHasher returns a Hasher that allows at most concurrency derivations in
// flight via HashContext and VerifyContext.
func NewHasher(params Params, concurrency int64) (*Hasher, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("kdf concurrency must be > 0")
	}
	return &Hasher{
		params: params,
		sem:    semaphore.NewWeighted(concurrency),
		rand:   rand.Reader,
	}, nil
}

var defaultHasher = &Hasher{params: DefaultParams, sem: semaphore.NewWeighted(4), rand: rand.Reader}

// Hash hashes password with DefaultParams.
func Hash(password string) (string, error) {
	return defaultHasher.Hash(password)
}

// Verify checks password against stored using DefaultParams.
func Verify(password, stored string) bool {
	return defaultHasher.Verify(password, stored)
}

// Hash generates a fresh salt and returns the stored form of password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	raw := make([]byte, h.params.SaltLen)
	if _, err := io.ReadFull(h.rand, raw); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	salt := hex.EncodeToString(raw)

	key, err := h.derive(password, salt)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	return salt + separator + hex.EncodeToString(key), nil
}

// Verify reports whether password matches stored. Malformed stored values and
// derivation failures report false like any other mismatch.
func (h *Hasher) Verify(password, stored string) bool {
	salt, keyHex, ok := strings.Cut(stored, separator)
	if !ok || salt == "" || strings.Contains(keyHex, separator) {
		return false
	}
	want, err := hex.DecodeString(keyHex)
	if err != nil || len(want) != h.params.KeyLen {
		return false
	}
	got, err := h.derive(password, salt)
	if err != nil || len(got) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

// HashContext is Hash run under the concurrency bound.
func (h *Hasher) HashContext(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	return h.Hash(password)
}

// VerifyContext is Verify run under the concurrency bound. A cancelled
// context reports false.
func (h *Hasher) VerifyContext(ctx context.Context, password, stored string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)
	return h.Verify(password, stored)
}

func (h *Hasher) derive(password, salt string) ([]byte, error) {
	return scrypt.Key([]byte(password), []byte(salt), h.params.N, h.params.R, h.params.P, h.params.KeyLen)
}
