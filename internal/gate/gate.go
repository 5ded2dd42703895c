// Package gate admits or redirects requests to the protected admin tree
// based on the session cookie.
package gate

import (
	"context"
	"net/http"
	"strings"

	"newsroom/admin/internal/logging"
	"newsroom/admin/internal/metrics"
	"newsroom/admin/internal/session"
)

// Verifier checks a session token. *session.Authority implements it.
type Verifier interface {
	Verify(token string) (session.Payload, bool)
}

// Config describes the protected tree.
type Config struct {
	CookieName string
	// LoginPath is where unauthenticated requests are sent. Authenticated
	// requests for it are sent to HomePath.
	LoginPath string
	// ProtectedPrefix is the root of the protected tree, matched on whole
	// path segments.
	ProtectedPrefix string
	HomePath        string
}

// Gate is the request gate middleware.
type Gate struct {
	verifier Verifier
	cfg      Config
}

type identityKey struct{}

// New returns a Gate. Empty fields of cfg fall back to the admin defaults.
func New(verifier Verifier, cfg Config) *Gate {
	if cfg.CookieName == "" {
		cfg.CookieName = session.CookieName
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/admin/login"
	}
	if cfg.ProtectedPrefix == "" {
		cfg.ProtectedPrefix = "/admin"
	}
	cfg.ProtectedPrefix = strings.TrimSuffix(cfg.ProtectedPrefix, "/")
	if cfg.HomePath == "" {
		cfg.HomePath = "/admin"
	}
	return &Gate{verifier: verifier, cfg: cfg}
}

// Middleware redirects unauthenticated requests under the protected prefix
// to the login path and authenticated requests for the login path to the
// home path. Admitted requests carry the session payload in their context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, authenticated := g.Authenticate(r)
		path := r.URL.Path

		switch {
		case path == g.cfg.LoginPath:
			if authenticated {
				metrics.RecordGateDecision(metrics.DecisionRedirectHome)
				http.Redirect(w, r, g.cfg.HomePath, http.StatusTemporaryRedirect)
				return
			}
			metrics.RecordGateDecision(metrics.DecisionPass)
		case g.protected(path):
			if !authenticated {
				metrics.RecordGateDecision(metrics.DecisionRedirectLogin)
				logging.Ctx(r.Context()).Debug().Str("path", path).Msg("gate: redirecting to login")
				http.Redirect(w, r, g.cfg.LoginPath, http.StatusTemporaryRedirect)
				return
			}
			metrics.RecordGateDecision(metrics.DecisionAllow)
		default:
			metrics.RecordGateDecision(metrics.DecisionPass)
		}

		if authenticated {
			r = r.WithContext(WithPayload(r.Context(), payload))
		}
		next.ServeHTTP(w, r)
	})
}

// Config returns the effective configuration, defaults applied.
func (g *Gate) Config() Config {
	return g.cfg
}

// Authenticate verifies the session cookie carried by r.
func (g *Gate) Authenticate(r *http.Request) (session.Payload, bool) {
	token := TokenFromCookieHeader(r.Header.Get("Cookie"), g.cfg.CookieName)
	if token == "" {
		return session.Payload{}, false
	}
	return g.verifier.Verify(token)
}

func (g *Gate) protected(path string) bool {
	return path == g.cfg.ProtectedPrefix || strings.HasPrefix(path, g.cfg.ProtectedPrefix+"/")
}

// TokenFromCookieHeader returns the value of the cookie called name in a raw
// Cookie header, or "" when it is absent.
func TokenFromCookieHeader(header, name string) string {
	if header == "" || name == "" {
		return ""
	}
	r := http.Request{Header: http.Header{"Cookie": {header}}}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// WithPayload returns ctx carrying p.
func WithPayload(ctx context.Context, p session.Payload) context.Context {
	return context.WithValue(ctx, identityKey{}, p)
}

// PayloadFromContext returns the payload stored by the gate.
func PayloadFromContext(ctx context.Context) (session.Payload, bool) {
	p, ok := ctx.Value(identityKey{}).(session.Payload)
	return p, ok
}

// IdentityFromContext returns the authenticated identity, or "".
func IdentityFromContext(ctx context.Context) string {
	p, _ := PayloadFromContext(ctx)
	return p.Identity
}
