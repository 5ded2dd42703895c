// Package sessiontest holds the conformance suite every session.Codec must
// pass. Implementations are checked against the standard codec so that a
// token produced in one runtime verifies identically in any other.
package sessiontest

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"newsroom/admin/internal/session"
)

// Secrets covers short, block-sized and longer-than-block keys.
var Secrets = [][]byte{
	[]byte("k"),
	[]byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"),
	[]byte(strings.Repeat("long-secret-", 20)),
}

// Run checks factory against session.NewStdCodec.
func Run(t *testing.T, factory session.CodecFactory) {
	t.Helper()

	t.Run("EncodeMatchesReference", func(t *testing.T) {
		ref := session.NewStdCodec([]byte("k"))
		c := factory([]byte("k"))
		for n := 0; n <= 70; n++ {
			b := sampleBytes(n)
			want := ref.Encode(b)
			got := c.Encode(b)
			if got != want {
				t.Fatalf("Encode(%d bytes) = %q, want %q", n, got, want)
			}
			dec, err := c.Decode(got)
			if err != nil {
				t.Fatalf("Decode(%q) error: %v", got, err)
			}
			if !bytes.Equal(dec, b) {
				t.Fatalf("Decode(Encode(%d bytes)) mismatch", n)
			}
		}
	})

	t.Run("DecodeRejectsLikeReference", func(t *testing.T) {
		ref := session.NewStdCodec([]byte("k"))
		c := factory([]byte("k"))
		inputs := []string{
			"", "A", "AA", "AAA", "AAAA", "AB", "AAB", "QQ", "QR", "QUI", "QUJ",
			"QUJD", "QUJD=", "QUJDRA==", "QUJDRA", "a+b/", "a-b_", "ab cd", "ab\ncd",
			"ab\rcd", "é", "Zm9v.YmFy", "Zm9vYmFy", "Zm9vYmF", "Zm9vYmE",
		}
		for _, in := range inputs {
			wantBytes, wantErr := ref.Decode(in)
			gotBytes, gotErr := c.Decode(in)
			if (wantErr == nil) != (gotErr == nil) {
				t.Fatalf("Decode(%q): reference err=%v, codec err=%v", in, wantErr, gotErr)
			}
			if wantErr == nil && !bytes.Equal(wantBytes, gotBytes) {
				t.Fatalf("Decode(%q) = %x, want %x", in, gotBytes, wantBytes)
			}
		}
	})

	t.Run("SignMatchesReference", func(t *testing.T) {
		for _, secret := range Secrets {
			ref := session.NewStdCodec(secret)
			c := factory(secret)
			for _, msg := range [][]byte{nil, []byte("a"), sampleBytes(63), sampleBytes(64), sampleBytes(200)} {
				want := ref.Sign(msg)
				got := c.Sign(msg)
				if !bytes.Equal(got, want) {
					t.Fatalf("Sign(len %d) with secret len %d mismatch", len(msg), len(secret))
				}
				if !c.Verify(msg, want) {
					t.Fatalf("Verify rejected reference signature")
				}
			}
		}
	})

	t.Run("VerifyRejectsBadSignatures", func(t *testing.T) {
		c := factory([]byte("k"))
		msg := []byte("payload")
		sig := c.Sign(msg)

		if c.Verify(msg, nil) {
			t.Fatalf("Verify accepted empty signature")
		}
		if c.Verify(msg, sig[:len(sig)-1]) {
			t.Fatalf("Verify accepted truncated signature")
		}
		if c.Verify(msg, append(append([]byte(nil), sig...), 0)) {
			t.Fatalf("Verify accepted extended signature")
		}
		for i := range sig {
			mutated := append([]byte(nil), sig...)
			mutated[i] ^= 0x01
			if c.Verify(msg, mutated) {
				t.Fatalf("Verify accepted signature with byte %d flipped", i)
			}
		}
		if c.Verify([]byte("payloae"), sig) {
			t.Fatalf("Verify accepted signature for a different message")
		}
		if factory([]byte("other")).Verify(msg, sig) {
			t.Fatalf("Verify accepted signature made with a different secret")
		}
	})

	t.Run("CrossContextTokens", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := session.WithClock(func() time.Time { return now })
		secret := []byte("cross-context-secret")

		std, err := session.NewAuthority(secret, clock)
		if err != nil {
			t.Fatalf("NewAuthority() error: %v", err)
		}
		other, err := session.NewAuthority(secret, clock, session.WithCodec(factory))
		if err != nil {
			t.Fatalf("NewAuthority() error: %v", err)
		}

		for _, identity := range []string{"alice@example.com", "ünïcødé@example.com", "a", strings.Repeat("x", 257)} {
			fromStd, err := std.Issue(identity, time.Hour)
			if err != nil {
				t.Fatalf("Issue() error: %v", err)
			}
			fromOther, err := other.Issue(identity, time.Hour)
			if err != nil {
				t.Fatalf("Issue() error: %v", err)
			}
			if fromStd != fromOther {
				t.Fatalf("tokens differ for %q:\n%s\n%s", identity, fromStd, fromOther)
			}
			if p, ok := other.Verify(fromStd); !ok || p.Identity != identity {
				t.Fatalf("codec rejected reference token for %q", identity)
			}
			if p, ok := std.Verify(fromOther); !ok || p.Identity != identity {
				t.Fatalf("reference rejected codec token for %q", identity)
			}
		}
	})

	t.Run("CrossContextRejections", func(t *testing.T) {
		secret := []byte("cross-context-secret")
		std, _ := session.NewAuthority(secret)
		other, _ := session.NewAuthority(secret, session.WithCodec(factory))

		token, err := std.Issue("alice@example.com", time.Hour)
		if err != nil {
			t.Fatalf("Issue() error: %v", err)
		}
		for _, bad := range Mutations(token) {
			_, okStd := std.Verify(bad)
			_, okOther := other.Verify(bad)
			if okStd || okOther {
				t.Fatalf("mutated token accepted (std=%v other=%v): %q", okStd, okOther, bad)
			}
		}
	})
}

// Mutations returns every single-character substitution of token plus a few
// structural corruptions.
func Mutations(token string) []string {
	out := []string{
		"",
		".",
		strings.ReplaceAll(token, ".", ""),
		token + ".",
		"." + token,
		token + "x",
		token + "=",
		strings.Replace(token, ".", "..", 1),
	}
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		repl := byte('A')
		if token[i] == 'A' {
			repl = 'B'
		}
		out = append(out, token[:i]+string(repl)+token[i+1:])
	}
	return out
}

func sampleBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*37 + 11)
	}
	return b
}
