package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// FileUserStore keeps users in a JSON file. Suitable for single-instance
// deployments without a database.
type FileUserStore struct {
	path string

	mu    sync.RWMutex
	users map[string]User
}

// fileRecord is the on-disk form of a User; unlike the API shape it keeps
// the credential hash.
type fileRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewFileUserStore(path string) (*FileUserStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("user state file path is required")
	}

	s := &FileUserStore{
		path:  path,
		users: make(map[string]User),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *FileUserStore) Put(_ context.Context, user User) error {
	user.Email = NormalizeEmail(user.Email)
	if user.Email == "" {
		return fmt.Errorf("email is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.users[user.Email]
	s.users[user.Email] = user
	if err := s.persistLocked(); err != nil {
		if existed {
			s.users[user.Email] = prev
		} else {
			delete(s.users, user.Email)
		}
		return err
	}
	return nil
}

func (s *FileUserStore) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read user store file: %w", err)
	}
	if len(b) == 0 {
		return nil
	}

	var decoded []fileRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode user store file: %w", err)
	}
	for _, r := range decoded {
		email := NormalizeEmail(r.Email)
		if email == "" {
			continue
		}
		s.users[email] = User{
			ID:           r.ID,
			Email:        email,
			Name:         r.Name,
			PasswordHash: r.PasswordHash,
			CreatedAt:    r.CreatedAt,
		}
	}
	return nil
}

func (s *FileUserStore) persistLocked() error {
	out := make([]fileRecord, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, fileRecord{
			ID:           u.ID,
			Email:        u.Email,
			Name:         u.Name,
			PasswordHash: u.PasswordHash,
			CreatedAt:    u.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user store file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("mkdir user store dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write user store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace user store file: %w", err)
	}
	return nil
}
