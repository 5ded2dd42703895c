package httpserver

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newsroom/admin/internal/audit"
	"newsroom/admin/internal/auth"
	"newsroom/admin/internal/config"
	"newsroom/admin/internal/gate"
	"newsroom/admin/internal/logging"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	ChangePassword(ctx context.Context, identity, currentPassword, newPassword string) error
	SessionTTL() time.Duration
}

type AuditLogger interface {
	Log(e audit.Event) error
}

type Deps struct {
	Auth  AuthService
	Gate  *gate.Gate
	Audit AuditLogger
	// Ready reports whether backing stores are reachable. Nil means always
	// ready.
	Ready func(ctx context.Context) error
}

// Options are the cookie and abuse-protection settings of the auth API.
type Options struct {
	SecureCookies      bool
	LoginRateLimit     int
	LoginRateWindow    time.Duration
	CORSAllowedOrigins []string
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, opts Options, deps Deps) *Server {
	opts.CORSAllowedOrigins = cfg.CORSAllowedOrigins
	handler := NewHandler(deps, opts)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		},
	}
}

type handlers struct {
	deps     Deps
	opts     Options
	validate *validator.Validate
}

func NewHandler(deps Deps, opts Options) http.Handler {
	if opts.LoginRateLimit <= 0 {
		opts.LoginRateLimit = 10
	}
	if opts.LoginRateWindow <= 0 {
		opts.LoginRateWindow = 5 * time.Minute
	}
	h := &handlers{
		deps:     deps,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(chimiddleware.Recoverer)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", h.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.With(httprate.Limit(
			opts.LoginRateLimit,
			opts.LoginRateWindow,
			httprate.WithKeyFuncs(httprate.KeyByRealIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusTooManyRequests, "too many login attempts")
			}),
		)).Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.Get("/session", h.handleSession)
		r.Post("/password", h.handleChangePassword)
	})

	if deps.Gate != nil {
		paths := deps.Gate.Config()
		r.Group(func(r chi.Router) {
			r.Use(deps.Gate.Middleware)
			r.Get(paths.LoginPath, h.handleLoginPage)
			r.Get(paths.ProtectedPrefix, h.handleAdminPage)
			r.Get(paths.ProtectedPrefix+"/*", h.handleAdminPage)
		})
	}

	return r
}

func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Ready(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" || len(reqID) > 128 {
			reqID = logging.NewRequestID()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(logging.ContextWithRequestID(r.Context(), reqID))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logging.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Str("remote_ip", clientIP(r)).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// clientIP returns the caller address. RealIP has already folded
// X-Forwarded-For and X-Real-IP into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func auditReq(a AuditLogger, r *http.Request, actor, action, outcome, detail string) {
	if a == nil {
		return
	}
	e := audit.Event{
		Actor:     actor,
		Action:    action,
		Outcome:   outcome,
		RemoteIP:  clientIP(r),
		RequestID: logging.RequestIDFromContext(r.Context()),
		Detail:    strings.TrimSpace(detail),
	}
	if err := a.Log(e); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("action", action).Msg("write audit event")
	}
}
