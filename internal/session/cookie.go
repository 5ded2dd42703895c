package session

import (
	"net/http"
	"time"
)

// CookieName is the default name of the session cookie.
const CookieName = "admin_session"

// NewCookie packages token as the session cookie. Secure is set only when
// secure is true (production deployments).
func NewCookie(name, token string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
}

// ClearCookie returns a cookie that removes the session cookie
// (empty value, Max-Age=0).
func ClearCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
}
