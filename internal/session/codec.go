package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// Codec is the primitive set the Authority is built on. Every implementation
// must produce and accept exactly the same bytes: unpadded base64url text and
// HMAC-SHA256 signatures keyed with the secret it was constructed with.
type Codec interface {
	Sign(msg []byte) []byte
	Verify(msg, sig []byte) bool
	Encode(b []byte) string
	Decode(s string) ([]byte, error)
}

// CodecFactory builds a Codec bound to a signing secret.
type CodecFactory func(secret []byte) Codec

// ErrMalformedEncoding is returned by Decode for anything that is not
// canonical unpadded base64url.
var ErrMalformedEncoding = errors.New("malformed base64url")

var rawURL = base64.RawURLEncoding.Strict()

type stdCodec struct {
	secret []byte
}

// NewStdCodec returns the Codec backed by crypto/hmac and encoding/base64.
func NewStdCodec(secret []byte) Codec {
	return &stdCodec{secret: append([]byte(nil), secret...)}
}

func (c *stdCodec) Sign(msg []byte) []byte {
	m := hmac.New(sha256.New, c.secret)
	m.Write(msg)
	return m.Sum(nil)
}

func (c *stdCodec) Verify(msg, sig []byte) bool {
	if len(sig) != sha256.Size {
		return false
	}
	return hmac.Equal(c.Sign(msg), sig)
}

func (c *stdCodec) Encode(b []byte) string {
	return rawURL.EncodeToString(b)
}

func (c *stdCodec) Decode(s string) ([]byte, error) {
	// encoding/base64 skips CR and LF while decoding; the token grammar has no
	// room for them.
	if strings.ContainsAny(s, "\r\n") {
		return nil, ErrMalformedEncoding
	}
	b, err := rawURL.DecodeString(s)
	if err != nil {
		return nil, ErrMalformedEncoding
	}
	return b, nil
}
