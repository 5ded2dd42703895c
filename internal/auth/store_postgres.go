package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresUserStore reads and writes the admin_users table. The schema is
// owned by the migrations package.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) (*PostgresUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresUserStore{db: db}, nil
}

func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrUserNotFound
	}

	var u User
	const q = `SELECT id, email, name, password_hash, created_at FROM admin_users WHERE email = $1`
	if err := s.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query admin user: %w", err)
	}
	return u, nil
}

func (s *PostgresUserStore) Put(ctx context.Context, user User) error {
	user.Email = NormalizeEmail(user.Email)
	if user.ID == "" || user.Email == "" || user.PasswordHash == "" {
		return fmt.Errorf("id, email, and password hash are required")
	}

	const q = `
INSERT INTO admin_users (id, email, name, password_hash, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (email) DO UPDATE
SET name = EXCLUDED.name,
	password_hash = EXCLUDED.password_hash,
	updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, q, user.ID, user.Email, user.Name, user.PasswordHash); err != nil {
		return fmt.Errorf("upsert admin user: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *PostgresUserStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
