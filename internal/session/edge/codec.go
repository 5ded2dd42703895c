// Package edge implements the session token codec for restricted runtimes
// (edge workers, wasm builds) where only a raw SHA-256 digest is available.
// HMAC and base64url are built here from that primitive and plain byte
// arithmetic; the output is byte-for-byte identical to session.NewStdCodec.
package edge

import (
	"crypto/sha256"
	"errors"
)

const (
	blockSize = 64
	alphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	invalid   = 0xff
)

var errMalformed = errors.New("malformed base64url")

var decodeMap = func() [256]byte {
	var m [256]byte
	for i := range m {
		m[i] = invalid
	}
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = byte(i)
	}
	return m
}()

// Codec signs with HMAC-SHA256 and encodes with unpadded base64url.
type Codec struct {
	ipad [blockSize]byte
	opad [blockSize]byte
}

// NewCodec precomputes the inner and outer HMAC pads for secret.
func NewCodec(secret []byte) *Codec {
	key := secret
	if len(key) > blockSize {
		sum := sha256.Sum256(key)
		key = sum[:]
	}
	c := &Codec{}
	for i := 0; i < blockSize; i++ {
		var k byte
		if i < len(key) {
			k = key[i]
		}
		c.ipad[i] = k ^ 0x36
		c.opad[i] = k ^ 0x5c
	}
	return c
}

func (c *Codec) Sign(msg []byte) []byte {
	inner := make([]byte, 0, blockSize+len(msg))
	inner = append(inner, c.ipad[:]...)
	inner = append(inner, msg...)
	innerSum := sha256.Sum256(inner)

	outer := make([]byte, 0, blockSize+sha256.Size)
	outer = append(outer, c.opad[:]...)
	outer = append(outer, innerSum[:]...)
	sum := sha256.Sum256(outer)
	return sum[:]
}

// Verify compares lengths first and then every byte, so the time taken does
// not depend on where the signatures differ.
func (c *Codec) Verify(msg, sig []byte) bool {
	if len(sig) != sha256.Size {
		return false
	}
	want := c.Sign(msg)
	var diff byte
	for i := range want {
		diff |= want[i] ^ sig[i]
	}
	return diff == 0
}

func (c *Codec) Encode(b []byte) string {
	out := make([]byte, 0, (len(b)*8+5)/6)
	i := 0
	for ; i+3 <= len(b); i += 3 {
		v := uint(b[i])<<16 | uint(b[i+1])<<8 | uint(b[i+2])
		out = append(out, alphabet[v>>18&0x3f], alphabet[v>>12&0x3f], alphabet[v>>6&0x3f], alphabet[v&0x3f])
	}
	switch len(b) - i {
	case 1:
		v := uint(b[i]) << 16
		out = append(out, alphabet[v>>18&0x3f], alphabet[v>>12&0x3f])
	case 2:
		v := uint(b[i])<<16 | uint(b[i+1])<<8
		out = append(out, alphabet[v>>18&0x3f], alphabet[v>>12&0x3f], alphabet[v>>6&0x3f])
	}
	return string(out)
}

// Decode accepts canonical unpadded base64url only: no padding, no
// characters outside the alphabet, and zero trailing bits.
func (c *Codec) Decode(s string) ([]byte, error) {
	if len(s)%4 == 1 {
		return nil, errMalformed
	}
	out := make([]byte, 0, len(s)*6/8)
	var acc uint
	var bits uint
	for i := 0; i < len(s); i++ {
		d := decodeMap[s[i]]
		if d == invalid {
			return nil, errMalformed
		}
		acc = acc<<6 | uint(d)
		bits += 6
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
			acc &= 1<<bits - 1
		}
	}
	if acc != 0 {
		return nil, errMalformed
	}
	return out, nil
}
