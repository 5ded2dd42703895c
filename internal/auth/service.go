package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"newsroom/admin/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("weak password")
)

const (
	minPasswordLength = 12
	maxPasswordLength = 128
)

// PasswordHasher produces and checks credential hashes. *password.Hasher
// implements it.
type PasswordHasher interface {
	HashContext(ctx context.Context, password string) (string, error)
	VerifyContext(ctx context.Context, password, stored string) bool
}

// TokenIssuer issues session tokens. *session.Authority implements it.
type TokenIssuer interface {
	IssueSession(identity string, ttl time.Duration) (string, session.Payload, error)
}

type Service struct {
	users   UserStore
	hasher  PasswordHasher
	tokens  TokenIssuer
	ttl     time.Duration
	nowFunc func() time.Time

	// decoyHash is verified against when the e-mail is unknown so that both
	// failure paths cost one key derivation.
	decoyHash string
}

type ServiceConfig struct {
	SessionTTL time.Duration
}

func NewService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, cfg ServiceConfig) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be > 0")
	}

	decoy, err := hasher.HashContext(context.Background(), uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare decoy hash: %w", err)
	}

	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		ttl:       cfg.SessionTTL,
		nowFunc:   time.Now,
		decoyHash: decoy,
	}, nil
}

// SessionTTL is the lifetime of tokens issued by Login.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// Login checks email and password and issues a session token. Every
// credential failure is ErrInvalidCredentials; other errors are store or
// signing failures.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		s.hasher.VerifyContext(ctx, password, s.decoyHash)
		return LoginResult{}, ErrInvalidCredentials
	case err != nil:
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.VerifyContext(ctx, password, u.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, payload, err := s.tokens.IssueSession(u.Email, s.ttl)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session: %w", err)
	}
	return LoginResult{Token: token, Payload: payload}, nil
}

// ChangePassword replaces the credential hash of identity after checking
// the current password. Existing tokens stay valid until they expire.
func (s *Service) ChangePassword(ctx context.Context, identity, currentPassword, newPassword string) error {
	if err := validatePasswordPolicy(newPassword); err != nil {
		return ErrWeakPassword
	}

	user, err := s.users.GetByEmail(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.VerifyContext(ctx, currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.HashContext(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.users.Put(ctx, user); err != nil {
		return fmt.Errorf("store updated password: %w", err)
	}
	return nil
}

// EnsureUser creates a user with email and password unless one already
// exists. It reports whether a user was created. An existing user's
// password is left untouched.
func (s *Service) EnsureUser(ctx context.Context, email, name, password string) (bool, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return false, fmt.Errorf("email is required")
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return false, fmt.Errorf("lookup user: %w", err)
	}

	if err := validatePasswordPolicy(password); err != nil {
		return false, err
	}
	hash, err := s.hasher.HashContext(ctx, password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		CreatedAt:    s.nowFunc().UTC(),
	}
	if err := s.users.Put(ctx, u); err != nil {
		return false, fmt.Errorf("store user: %w", err)
	}
	return true, nil
}

func validatePasswordPolicy(password string) error {
	if strings.TrimSpace(password) != password {
		return ErrWeakPassword
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return ErrWeakPassword
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return ErrWeakPassword
	}
	return nil
}
