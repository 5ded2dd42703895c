package httpserver

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"newsroom/admin/internal/audit"
	"newsroom/admin/internal/auth"
	"newsroom/admin/internal/gate"
	"newsroom/admin/internal/logging"
	"newsroom/admin/internal/metrics"
	"newsroom/admin/internal/session"
)

const maxBodyBytes = 64 << 10

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,max=1024"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=1024"`
	NewPassword     string `json:"new_password" validate:"required,max=1024"`
}

func (h *handlers) cookieName() string {
	if h.deps.Gate != nil {
		return h.deps.Gate.Config().CookieName
	}
	return session.CookieName
}

func (h *handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.LoginDuration.Observe(time.Since(start).Seconds()) }()

	if h.deps.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
		return
	}

	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		metrics.RecordLogin(metrics.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Field-level problems are reported exactly like wrong credentials.
	if err := h.validate.Struct(req); err != nil {
		metrics.RecordLogin(metrics.OutcomeRejected)
		auditReq(h.deps.Audit, r, auth.NormalizeEmail(req.Email), audit.ActionLogin, audit.OutcomeFailure, "invalid credentials")
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	res, err := h.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.RecordLogin(metrics.OutcomeRejected)
			auditReq(h.deps.Audit, r, auth.NormalizeEmail(req.Email), audit.ActionLogin, audit.OutcomeFailure, "invalid credentials")
			writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
			return
		}
		metrics.RecordLogin(metrics.OutcomeError)
		logging.Ctx(r.Context()).Error().Err(err).Msg("login failed")
		auditReq(h.deps.Audit, r, auth.NormalizeEmail(req.Email), audit.ActionLogin, audit.OutcomeError, "")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	metrics.RecordLogin(metrics.OutcomeSuccess)
	auditReq(h.deps.Audit, r, res.Payload.Identity, audit.ActionLogin, audit.OutcomeSuccess, "")

	http.SetCookie(w, session.NewCookie(h.cookieName(), res.Token, h.deps.Auth.SessionTTL(), h.opts.SecureCookies))
	writeJSON(w, http.StatusOK, auth.NewSessionView(res.Payload))
}

func (h *handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	actor := ""
	if h.deps.Gate != nil {
		if p, ok := h.deps.Gate.Authenticate(r); ok {
			actor = p.Identity
		}
	}
	http.SetCookie(w, session.ClearCookie(h.cookieName(), h.opts.SecureCookies))
	auditReq(h.deps.Audit, r, actor, audit.ActionLogout, audit.OutcomeSuccess, "")
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleSession(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, auth.NewSessionView(p))
}

func (h *handlers) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if h.deps.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
		return
	}
	p, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "current_password and new_password are required")
		return
	}

	if err := h.deps.Auth.ChangePassword(r.Context(), p.Identity, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			metrics.RecordPasswordChange(metrics.OutcomeRejected)
			auditReq(h.deps.Audit, r, p.Identity, audit.ActionPasswordChange, audit.OutcomeFailure, "weak password")
			writeError(w, http.StatusBadRequest, "new password does not meet policy")
		case errors.Is(err, auth.ErrInvalidCredentials):
			metrics.RecordPasswordChange(metrics.OutcomeRejected)
			auditReq(h.deps.Audit, r, p.Identity, audit.ActionPasswordChange, audit.OutcomeFailure, "invalid credentials")
			writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		default:
			metrics.RecordPasswordChange(metrics.OutcomeError)
			logging.Ctx(r.Context()).Error().Err(err).Msg("change password failed")
			auditReq(h.deps.Audit, r, p.Identity, audit.ActionPasswordChange, audit.OutcomeError, "")
			writeError(w, http.StatusInternalServerError, "change password failed")
		}
		return
	}
	metrics.RecordPasswordChange(metrics.OutcomeSuccess)
	auditReq(h.deps.Audit, r, p.Identity, audit.ActionPasswordChange, audit.OutcomeSuccess, "")
	w.WriteHeader(http.StatusNoContent)
}

// requireSession answers 401 unless r carries a valid session cookie.
func (h *handlers) requireSession(w http.ResponseWriter, r *http.Request) (session.Payload, bool) {
	if h.deps.Gate == nil {
		writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
		return session.Payload{}, false
	}
	p, ok := h.deps.Gate.Authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return session.Payload{}, false
	}
	return p, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

var (
	loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Sign in</title></head>
<body>
<form id="login" method="post" action="/api/auth/login">
<label>E-mail <input type="email" name="email" autocomplete="username" required></label>
<label>Password <input type="password" name="password" autocomplete="current-password" required></label>
<button type="submit">Sign in</button>
</form>
<script>
document.getElementById("login").addEventListener("submit", async (e) => {
  e.preventDefault();
  const f = new FormData(e.target);
  const res = await fetch("/api/auth/login", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({email: f.get("email"), password: f.get("password")}),
  });
  if (res.ok) { window.location.assign({{.Home}}); } else { alert("Invalid credentials"); }
});
</script>
</body></html>
`))

	adminPage = template.Must(template.New("admin").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Newsroom admin</title></head>
<body>
<p>Signed in as {{.Identity}} until {{.ExpiresAt.Format "2006-01-02 15:04 MST"}}.</p>
</body></html>
`))
)

func (h *handlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := loginPage.Execute(w, map[string]string{"Home": h.deps.Gate.Config().HomePath}); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("render login page")
	}
}

func (h *handlers) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	p, ok := gate.PayloadFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := adminPage.Execute(w, auth.NewSessionView(p)); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("render admin page")
	}
}
