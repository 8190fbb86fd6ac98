// Package httpserver exposes the authentication HTTP API.
package httpserver

import (
	"context"
	"net"
	"net/http"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/simplidoc/internal/api"
	"github.com/and161185/simplidoc/internal/errs"
	"github.com/and161185/simplidoc/internal/metrics"
	"github.com/and161185/simplidoc/internal/model"
	"github.com/and161185/simplidoc/internal/service"
)

// Auth is the application service behind the endpoints.
type Auth interface {
	Register(ctx context.Context, in service.RegisterInput) (service.AuthResult, error)
	Login(ctx context.Context, email, password, ip string) (service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Authenticate(ctx context.Context, accessToken string) (model.Identity, error)
	Me(ctx context.Context, u model.Identity) []model.HistoryEntry
	UpdateProfile(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) (model.Identity, error)
}

// Server wires the auth service into HTTP handlers.
type Server struct {
	auth    Auth
	log     *zap.Logger
	metrics *metrics.Auth
	health  func(context.Context) error
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics enables the prometheus counters and the /metrics route.
func WithMetrics(m *metrics.Auth) Option { return func(s *Server) { s.metrics = m } }

// WithHealthCheck makes /healthz report failures of check as 503.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(s *Server) { s.health = check }
}

// New constructs a Server.
func New(auth Auth, log *zap.Logger, opts ...Option) *Server {
	s := &Server{auth: auth, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler wrapped in recover and access-log middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.Register)
	mux.HandleFunc("POST /auth/login", s.Login)
	mux.HandleFunc("POST /auth/refresh", s.Refresh)
	mux.Handle("GET /auth/me", s.RequireAuth(http.HandlerFunc(s.Me)))
	mux.Handle("PATCH /auth/me", s.RequireAuth(http.HandlerFunc(s.UpdateProfile)))
	mux.Handle("POST /auth/logout", s.RequireAuth(http.HandlerFunc(s.Logout)))
	mux.Handle("GET /auth/status", s.OptionalAuth(http.HandlerFunc(s.Status)))
	mux.HandleFunc("GET /healthz", s.Healthz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody(errs.CodeNotFound, "Not found"))
	})
	return Recover(s.log)(Logging(s.log)(mux))
}

// fail logs collaborator faults and writes the opaque error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	e := asError(err)
	status := e.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.log.Error(endpoint, zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.metrics.Request(endpoint, string(e.Code))
	writeJSON(w, status, errorBody(e.Code, e.Message))
}

func (s *Server) ok(w http.ResponseWriter, endpoint string, status int, v any) {
	s.metrics.Request(endpoint, metrics.CodeOK)
	writeJSON(w, status, v)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Register creates an identity and returns it with a fresh token pair.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "register", err)
		return
	}
	res, err := s.auth.Register(r.Context(), service.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
	})
	if err != nil {
		s.fail(w, r, "register", err)
		return
	}
	s.ok(w, "register", http.StatusCreated, api.AuthResponse{
		Identity:     api.FromIdentity(res.Identity, nil),
		Token:        res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

// Login authenticates by email and password.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "login", err)
		return
	}
	res, err := s.auth.Login(r.Context(), req.Email, req.Password, remoteIP(r))
	if err != nil {
		s.fail(w, r, "login", err)
		return
	}
	s.ok(w, "login", http.StatusOK, api.AuthResponse{
		Identity:     api.FromIdentity(res.Identity, nil),
		Token:        res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		LastLoginAt:  res.Identity.LastLoginAt,
	})
}

// Refresh exchanges a refresh token for a new access token.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "refresh", err)
		return
	}
	access, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(w, r, "refresh", err)
		return
	}
	s.ok(w, "refresh", http.StatusOK, api.RefreshResponse{Token: access})
}

// Me returns the authenticated identity with its recent history.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := IdentityFromCtx(r.Context())
	if !ok {
		s.fail(w, r, "me", errs.New(errs.CodeNoToken, "No token provided"))
		return
	}
	history := s.auth.Me(r.Context(), u)
	s.ok(w, "me", http.StatusOK, api.IdentityResponse{Identity: api.FromIdentity(u, history)})
}

// UpdateProfile applies a partial profile update for the authenticated identity.
func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := IdentityFromCtx(r.Context())
	if !ok {
		s.fail(w, r, "profile", errs.New(errs.CodeNoToken, "No token provided"))
		return
	}
	var req api.ProfileRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, "profile", err)
		return
	}
	upd, err := s.auth.UpdateProfile(r.Context(), u.ID, model.ProfilePatch{
		Name:        req.Name,
		Preferences: model.Preferences(req.Preferences),
	})
	if err != nil {
		s.fail(w, r, "profile", err)
		return
	}
	s.ok(w, "profile", http.StatusOK, api.IdentityResponse{Identity: api.FromIdentity(upd, nil)})
}

// Logout acknowledges the request. Tokens are not revoked server-side;
// the client is expected to discard them.
func (s *Server) Logout(w http.ResponseWriter, _ *http.Request) {
	s.ok(w, "logout", http.StatusOK, api.MessageResponse{Message: "Logged out successfully"})
}

// Status reports whether the caller presented valid credentials. It never fails.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	resp := api.StatusResponse{}
	if u, ok := IdentityFromCtx(r.Context()); ok {
		id := api.FromIdentity(u, nil)
		resp.Authenticated = true
		resp.Identity = &id
	}
	s.ok(w, "status", http.StatusOK, resp)
}

// Healthz reports liveness and, when configured, storage reachability.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn("health check", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, errorBody(errs.CodeServerError, "Service unavailable"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
