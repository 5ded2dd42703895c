package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestNewPostgresUserStoreRequiresDB(t *testing.T) {
	if _, err := NewPostgresUserStore(nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestPostgresUserStoreGetByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	store, err := NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("SELECT id, email, name, password_hash, created_at FROM admin_users WHERE email = \\$1").
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "created_at"}).
			AddRow("u1", "admin@example.com", "Admin", "salt:key", created))

	u, err := store.GetByEmail(context.Background(), " ADMIN@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if u.ID != "u1" || u.PasswordHash != "salt:key" || !u.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresUserStoreGetByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	store, err := NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}

	mock.ExpectQuery("SELECT id, email, name, password_hash, created_at FROM admin_users WHERE email = \\$1").
		WithArgs("missing@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err = store.GetByEmail(context.Background(), "missing@example.com")
	if err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := store.GetByEmail(context.Background(), "   "); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound for blank email, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresUserStorePut(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	store, err := NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}

	mock.ExpectExec("INSERT INTO admin_users").
		WithArgs("u1", "admin@example.com", "Admin", "salt:key").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Put(context.Background(), User{
		ID:           "u1",
		Email:        "Admin@example.com",
		Name:         "Admin",
		PasswordHash: "salt:key",
	}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := store.Put(context.Background(), User{ID: "u2", Email: "x@example.com"}); err == nil {
		t.Fatalf("expected error for missing password hash")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
