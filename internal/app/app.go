package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	_ "github.com/lib/pq"

	"newsroom/admin/internal/audit"
	"newsroom/admin/internal/auth"
	"newsroom/admin/internal/config"
	"newsroom/admin/internal/gate"
	"newsroom/admin/internal/httpserver"
	"newsroom/admin/internal/logging"
	"newsroom/admin/internal/migrations"
	"newsroom/admin/internal/password"
	"newsroom/admin/internal/session"
)

type App struct {
	cfg    config.Config
	db     *sql.DB
	server *httpserver.Server
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	authority, err := session.NewAuthority([]byte(cfg.Auth.Secret))
	if err != nil {
		return nil, fmt.Errorf("create session authority: %w", err)
	}
	if len(cfg.Auth.Secret) < 32 {
		logging.Warn().Int("length", len(cfg.Auth.Secret)).Msg("AUTH_SECRET is shorter than 32 bytes")
	}

	hasher, err := password.NewHasher(password.DefaultParams, int64(cfg.Auth.KDFConcurrency))
	if err != nil {
		return nil, fmt.Errorf("create password hasher: %w", err)
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
	}
	closeDB := func() {
		if db != nil {
			_ = db.Close()
		}
	}

	var userStore auth.UserStore
	var ready func(context.Context) error
	if db != nil {
		pg, err := auth.NewPostgresUserStore(db)
		if err != nil {
			closeDB()
			return nil, fmt.Errorf("create postgres user store: %w", err)
		}
		userStore, ready = pg, pg.Ping
	} else {
		userStore, err = auth.NewFileUserStore(cfg.Auth.UserStateFile)
		if err != nil {
			return nil, fmt.Errorf("create user store: %w", err)
		}
		logging.Info().Str("path", cfg.Auth.UserStateFile).Msg("using file user store")
	}

	authService, err := auth.NewService(userStore, hasher, authority, auth.ServiceConfig{
		SessionTTL: cfg.Auth.SessionTTL,
	})
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	auditLogger := audit.NewLogger(cfg.AuditLogFile)
	if err := bootstrapAdmin(ctx, authService, auditLogger, cfg.Auth); err != nil {
		closeDB()
		return nil, err
	}

	g := gate.New(authority, gate.Config{
		CookieName:      cfg.Auth.CookieName,
		LoginPath:       cfg.Auth.LoginPath,
		ProtectedPrefix: cfg.Auth.ProtectedPrefix,
		HomePath:        cfg.Auth.HomePath,
	})

	server := httpserver.New(cfg.HTTP, httpserver.Options{
		SecureCookies:   cfg.IsProduction(),
		LoginRateLimit:  cfg.Auth.LoginRateLimit,
		LoginRateWindow: cfg.Auth.LoginRateWindow,
	}, httpserver.Deps{
		Auth:  authService,
		Gate:  g,
		Audit: auditLogger,
		Ready: ready,
	})

	return &App{
		cfg:    cfg,
		db:     db,
		server: server,
	}, nil
}

func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	m, err := migrations.NewService(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migration service: %w", err)
	}
	if err := m.Up(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if status, err := m.Status(ctx); err == nil && len(status) > 0 {
		logging.Info().Str("latest", status[len(status)-1].Name).Int("count", len(status)).Msg("database migrations applied")
	}
	return db, nil
}

func bootstrapAdmin(ctx context.Context, svc *auth.Service, auditLogger *audit.Logger, cfg config.AuthConfig) error {
	if cfg.BootstrapEmail == "" {
		return nil
	}
	created, err := svc.EnsureUser(ctx, cfg.BootstrapEmail, "", cfg.BootstrapPassword)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return fmt.Errorf("AUTH_BOOTSTRAP_PASSWORD does not meet the password policy")
		}
		return fmt.Errorf("create bootstrap user: %w", err)
	}
	if created {
		logging.Info().Str("email", auth.NormalizeEmail(cfg.BootstrapEmail)).Msg("bootstrap admin user created")
		if err := auditLogger.Log(audit.Event{
			Actor:   "system",
			Action:  audit.ActionBootstrap,
			Outcome: audit.OutcomeSuccess,
			Detail:  auth.NormalizeEmail(cfg.BootstrapEmail),
		}); err != nil {
			logging.Error().Err(err).Msg("write audit event")
		}
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	errCh := make(chan error, 1)

	go func() {
		logging.Info().Str("addr", a.cfg.HTTP.Addr).Str("environment", a.cfg.Environment).Msg("http server starting")
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}
