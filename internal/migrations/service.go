// Package migrations owns the Postgres schema. Migrations are embedded SQL
// files applied with goose.
package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

type FileInfo struct {
	Name     string `json:"name"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`
}

type Status struct {
	Name     string `json:"name"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`
	Applied  bool   `json:"applied"`
}

// gooseUp and gooseVersion are seams for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

var gooseVersion = func(ctx context.Context, db *sql.DB) (int64, error) {
	return goose.GetDBVersionContext(ctx, db)
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

type Service struct {
	fsys fs.FS
	db   *sql.DB
}

func NewService(db *sql.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return &Service{fsys: sub, db: db}, nil
}

// Up applies every pending migration.
func (s *Service) Up(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(s.fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUp(ctx, s.db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// List returns the embedded migration files ordered by version.
func (s *Service) List() ([]FileInfo, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, err := goose.NumericComponent(e.Name())
		if err != nil {
			return nil, fmt.Errorf("parse migration version %s: %w", e.Name(), err)
		}
		b, err := fs.ReadFile(s.fsys, path.Join(".", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(b)
		out = append(out, FileInfo{Name: e.Name(), Version: version, Checksum: hex.EncodeToString(sum[:])})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Status reports which embedded migrations the database has applied.
func (s *Service) Status(ctx context.Context) ([]Status, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}

	current, err := gooseVersion(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	out := make([]Status, 0, len(files))
	for _, f := range files {
		out = append(out, Status{
			Name:     f.Name,
			Version:  f.Version,
			Checksum: f.Checksum,
			Applied:  f.Version <= current,
		})
	}
	return out, nil
}
