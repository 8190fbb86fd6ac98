package httpserver

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/simplidoc/internal/errs"
)

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(v[7:])
	return t, t != ""
}

// RequireAuth rejects requests without a valid bearer token for an existing identity.
// On success the sanitized identity is attached to the request context.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			s.reject(w, errs.New(errs.CodeNoToken, "No token provided"))
			return
		}
		u, err := s.auth.Authenticate(r.Context(), tok)
		if err != nil {
			e := asError(err)
			if e.Code.HTTPStatus() >= http.StatusInternalServerError {
				s.log.Error("authenticate", zap.String("path", r.URL.Path), zap.Error(err))
			}
			s.reject(w, e)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), u)))
	})
}

func (s *Server) reject(w http.ResponseWriter, e *errs.Error) {
	s.metrics.Rejection(string(e.Code))
	writeJSON(w, e.Code.HTTPStatus(), errorBody(e.Code, e.Message))
}

// OptionalAuth attaches the identity when a valid bearer token is present and
// always forwards the request. Authentication failures never produce a response;
// store faults are logged.
func (s *Server) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		u, err := s.auth.Authenticate(r.Context(), tok)
		if err != nil {
			if asError(err).Code == errs.CodeServerError {
				s.log.Warn("optional auth", zap.String("path", r.URL.Path), zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), u)))
	})
}
