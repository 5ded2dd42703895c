package auth

import (
	"strings"
	"time"

	"newsroom/admin/internal/session"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginResult is a freshly issued session token and the payload it carries.
type LoginResult struct {
	Token   string
	Payload session.Payload
}

// SessionView is the JSON shape of an authenticated session.
type SessionView struct {
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewSessionView(p session.Payload) SessionView {
	return SessionView{Identity: p.Identity, ExpiresAt: p.Expiry().UTC()}
}

// NormalizeEmail is the lookup key for every user store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
