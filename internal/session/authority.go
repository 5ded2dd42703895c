// Package session issues and verifies stateless admin session tokens.
//
// A token is
//
//	base64url(json(Payload)) "." base64url(HMAC-SHA256(secret, encodedPayload))
//
// with unpadded base64url throughout. The signature covers the exact text of
// the encoded payload, and the payload is only decoded once the signature has
// been accepted. Nothing is stored server side: a token stays valid until its
// expiry.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const delimiter = "."

var (
	// ErrMissingSecret is a configuration error: the signing secret is empty.
	ErrMissingSecret = errors.New("session signing secret is not configured")
	// ErrEmptyIdentity is returned by Issue for an empty identity.
	ErrEmptyIdentity = errors.New("session identity must not be empty")
	// ErrInvalidTTL is returned by Issue for a non-positive ttl.
	ErrInvalidTTL = errors.New("session ttl must be > 0")
)

// Payload is the authenticated content of a token.
type Payload struct {
	Identity string `json:"identity"`
	// ExpiresAt is a Unix timestamp in milliseconds.
	ExpiresAt int64 `json:"expiresAt"`
}

// Expiry returns ExpiresAt as a time.Time.
func (p Payload) Expiry() time.Time {
	return time.UnixMilli(p.ExpiresAt)
}

// Authority issues and verifies tokens for one secret.
type Authority struct {
	codec   Codec
	nowFunc func() time.Time
}

// Option configures an Authority.
type Option func(*Authority, []byte)

// WithCodec selects the Codec implementation. The default is NewStdCodec.
func WithCodec(f CodecFactory) Option {
	return func(a *Authority, secret []byte) {
		a.codec = f(secret)
	}
}

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authority, _ []byte) {
		a.nowFunc = now
	}
}

// NewAuthority returns an Authority signing with secret. An empty secret is
// reported as ErrMissingSecret.
func NewAuthority(secret []byte, opts ...Option) (*Authority, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	a := &Authority{
		codec:   NewStdCodec(secret),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(a, secret)
	}
	return a, nil
}

// Issue returns a token for identity that expires ttl from now.
func (a *Authority) Issue(identity string, ttl time.Duration) (string, error) {
	token, _, err := a.IssueSession(identity, ttl)
	return token, err
}

// IssueSession is Issue that also returns the payload embedded in the token.
func (a *Authority) IssueSession(identity string, ttl time.Duration) (string, Payload, error) {
	if identity == "" {
		return "", Payload{}, ErrEmptyIdentity
	}
	if ttl <= 0 {
		return "", Payload{}, ErrInvalidTTL
	}
	p := Payload{
		Identity:  identity,
		ExpiresAt: a.nowFunc().Add(ttl).UnixMilli(),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", Payload{}, err
	}
	encoded := a.codec.Encode(raw)
	sig := a.codec.Encode(a.codec.Sign([]byte(encoded)))
	return encoded + delimiter + sig, p, nil
}

// Verify returns the payload of a valid, unexpired token. Every kind of
// rejection, including a panic in a codec, reports false.
func (a *Authority) Verify(token string) (p Payload, ok bool) {
	defer func() {
		if recover() != nil {
			p, ok = Payload{}, false
		}
	}()

	encoded, sigText, found := strings.Cut(token, delimiter)
	if !found || encoded == "" || sigText == "" || strings.Contains(sigText, delimiter) {
		return Payload{}, false
	}

	sig, err := a.codec.Decode(sigText)
	if err != nil {
		return Payload{}, false
	}
	if !a.codec.Verify([]byte(encoded), sig) {
		return Payload{}, false
	}

	raw, err := a.codec.Decode(encoded)
	if err != nil {
		return Payload{}, false
	}
	var decoded Payload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Payload{}, false
	}
	if decoded.Identity == "" || decoded.ExpiresAt == 0 {
		return Payload{}, false
	}
	if a.nowFunc().UnixMilli() >= decoded.ExpiresAt {
		return Payload{}, false
	}
	return decoded, true
}
