package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsroom/admin/internal/password"
	"newsroom/admin/internal/session"
)

type countingHasher struct {
	*password.Hasher
	verifies int
}

func (h *countingHasher) VerifyContext(ctx context.Context, pw, stored string) bool {
	h.verifies++
	return h.Hasher.VerifyContext(ctx, pw, stored)
}

type fixture struct {
	store     *InMemoryUserStore
	hasher    *countingHasher
	authority *session.Authority
	svc       *Service
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	h, err := password.NewHasher(password.Params{N: 1024, R: 8, P: 1, KeyLen: 64, SaltLen: 16}, 2)
	if err != nil {
		t.Fatalf("NewHasher() error: %v", err)
	}
	f := &fixture{
		store:  NewInMemoryUserStore(),
		hasher: &countingHasher{Hasher: h},
		now:    time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC),
	}
	f.authority, err = session.NewAuthority([]byte("service-secret"), session.WithClock(func() time.Time { return f.now }))
	if err != nil {
		t.Fatalf("NewAuthority() error: %v", err)
	}
	f.svc, err = NewService(f.store, f.hasher, f.authority, ServiceConfig{SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	f.svc.nowFunc = func() time.Time { return f.now }
	return f
}

func (f *fixture) addUser(t *testing.T, email, pw string) {
	t.Helper()
	hash, err := f.hasher.Hash(pw)
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if err := f.store.Put(context.Background(), User{ID: "u-1", Email: email, PasswordHash: hash}); err != nil {
		t.Fatalf("store.Put() error: %v", err)
	}
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	f := newFixture(t)

	if _, err := NewService(nil, f.hasher, f.authority, ServiceConfig{SessionTTL: time.Hour}); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewService(f.store, nil, f.authority, ServiceConfig{SessionTTL: time.Hour}); err == nil {
		t.Fatalf("expected error for nil hasher")
	}
	if _, err := NewService(f.store, f.hasher, nil, ServiceConfig{SessionTTL: time.Hour}); err == nil {
		t.Fatalf("expected error for nil token issuer")
	}
	if _, err := NewService(f.store, f.hasher, f.authority, ServiceConfig{}); err == nil {
		t.Fatalf("expected error for zero TTL")
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice@example.com", "correct-horse")

	res, err := f.svc.Login(context.Background(), " Alice@Example.com ", "correct-horse")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected non-empty token")
	}
	if res.Payload.Identity != "alice@example.com" {
		t.Fatalf("expected identity alice@example.com, got %q", res.Payload.Identity)
	}
	if want := f.now.Add(time.Hour).UnixMilli(); res.Payload.ExpiresAt != want {
		t.Fatalf("expected expiresAt %d, got %d", want, res.Payload.ExpiresAt)
	}

	p, ok := f.authority.Verify(res.Token)
	if !ok {
		t.Fatalf("Verify() rejected freshly issued token")
	}
	if p != res.Payload {
		t.Fatalf("expected payload %+v, got %+v", res.Payload, p)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "alice@example.com", "correct-horse")

	_, errWrong := f.svc.Login(context.Background(), "alice@example.com", "wrong-horse")
	_, errUnknown := f.svc.Login(context.Background(), "nobody@example.com", "correct-horse")
	_, errEmpty := f.svc.Login(context.Background(), "", "")

	for name, err := range map[string]error{"wrong": errWrong, "unknown": errUnknown, "empty": errEmpty} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
	}
	if errWrong.Error() != errUnknown.Error() {
		t.Fatalf("failure messages differ: %q vs %q", errWrong, errUnknown)
	}
}

func TestLoginUnknownEmailStillDerivesKey(t *testing.T) {
	f := newFixture(t)

	_, _ = f.svc.Login(context.Background(), "nobody@example.com", "whatever")
	if f.hasher.verifies != 1 {
		t.Fatalf("expected one decoy verification, got %d", f.hasher.verifies)
	}
}

type failingStore struct{ err error }

func (s failingStore) GetByEmail(context.Context, string) (User, error) { return User{}, s.err }
func (s failingStore) Put(context.Context, User) error                  { return s.err }

func TestLoginStoreFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection refused")
	svc, err := NewService(failingStore{err: boom}, f.hasher, f.authority, ServiceConfig{SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	_, err = svc.Login(context.Background(), "alice@example.com", "pw")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("store failure must not look like a credential failure")
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@example.com", "oldpass123")
	ctx := context.Background()

	if err := f.svc.ChangePassword(ctx, "admin@example.com", "oldpass123", "NewPassword123!"); err != nil {
		t.Fatalf("ChangePassword() error: %v", err)
	}

	_, err := f.svc.Login(ctx, "admin@example.com", "oldpass123")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to fail after change, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "admin@example.com", "NewPassword123!"); err != nil {
		t.Fatalf("expected login with new password to succeed, got %v", err)
	}
}

func TestChangePasswordRejections(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@example.com", "oldpass123")
	ctx := context.Background()

	if err := f.svc.ChangePassword(ctx, "admin@example.com", "oldpass123", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, "admin@example.com", "not-the-password", "NewPassword123!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, "ghost@example.com", "oldpass123", "NewPassword123!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown identity, got %v", err)
	}
}

func TestEnsureUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.EnsureUser(ctx, "Root@Example.com", "Root", "Bootstrap-Pass1")
	if err != nil {
		t.Fatalf("EnsureUser() error: %v", err)
	}
	if !created {
		t.Fatalf("expected user to be created")
	}

	u, err := f.store.GetByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if u.ID == "" || u.Name != "Root" || !u.CreatedAt.Equal(f.now) {
		t.Fatalf("unexpected stored user: %+v", u)
	}

	created, err = f.svc.EnsureUser(ctx, "root@example.com", "Root", "Another-Pass99")
	if err != nil {
		t.Fatalf("EnsureUser() second call error: %v", err)
	}
	if created {
		t.Fatalf("expected existing user to be kept")
	}
	if _, err := f.svc.Login(ctx, "root@example.com", "Bootstrap-Pass1"); err != nil {
		t.Fatalf("expected original password to keep working, got %v", err)
	}

	if _, err := f.svc.EnsureUser(ctx, "weak@example.com", "", "weak"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestValidatePasswordPolicy(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"NewPassword123!", true},
		{"short1!A", false},
		{"nouppercase123!", false},
		{"NOLOWERCASE123!", false},
		{"NoDigitsHere!!", false},
		{"NoSpecials1234", false},
		{" Padded-Pass123", false},
	}
	for _, tt := range tests {
		err := validatePasswordPolicy(tt.password)
		if (err == nil) != tt.ok {
			t.Fatalf("validatePasswordPolicy(%q) = %v, want ok=%v", tt.password, err, tt.ok)
		}
	}
}
