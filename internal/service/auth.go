// Package service contains the authentication application service.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/simplidoc/internal/crypto"
	"github.com/and161185/simplidoc/internal/errs"
	"github.com/and161185/simplidoc/internal/limiter"
	"github.com/and161185/simplidoc/internal/model"
	"github.com/and161185/simplidoc/internal/repository"
	"github.com/and161185/simplidoc/internal/token"
)

// MinPasswordLen is the shortest password accepted at registration.
const MinPasswordLen = 6

// Tokens issues and verifies access/refresh tokens.
type Tokens interface {
	Issue(subject uuid.UUID, kind token.Kind) (string, time.Time, error)
	IssuePair(subject uuid.UUID) (model.Tokens, error)
	Verify(tok string, kind token.Kind) (uuid.UUID, error)
}

// RegisterInput is the data submitted at registration.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
}

// AuthResult is returned by Register and Login. Identity is sanitized.
type AuthResult struct {
	Identity model.Identity
	Tokens   model.Tokens
}

// AuthService implements register, login, refresh and identity lookups on top of
// an IdentityStore. Every error it returns is an *errs.Error.
type AuthService struct {
	users        repository.IdentityStore
	history      repository.HistoryRepository
	tokens       Tokens
	lim          limiter.Limiter
	historyLimit int
	log          *zap.Logger
	now          func() time.Time
}

// Option customizes an AuthService.
type Option func(*AuthService)

// WithLimiter enables login throttling.
func WithLimiter(l limiter.Limiter) Option { return func(s *AuthService) { s.lim = l } }

// WithHistory attaches the document history collaborator used by Me.
func WithHistory(h repository.HistoryRepository, limit int) Option {
	return func(s *AuthService) {
		s.history = h
		s.historyLimit = limit
	}
}

// WithClock overrides the time source used for last-login stamps.
func WithClock(now func() time.Time) Option { return func(s *AuthService) { s.now = now } }

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.IdentityStore, tokens Tokens, log *zap.Logger, opts ...Option) *AuthService {
	s := &AuthService{
		users:  users,
		tokens: tokens,
		lim:    limiter.Noop{},
		log:    log,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register validates input, creates the identity and issues a token pair.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return AuthResult{}, errs.New(errs.CodeMissingFields, "Email and password are required")
	}
	if in.Password != in.ConfirmPassword {
		return AuthResult{}, errs.New(errs.CodePasswordMismatch, "Passwords do not match")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLen {
		return AuthResult{}, errs.New(errs.CodePasswordTooShort, "Password must be at least 6 characters")
	}
	if len(in.Password) > crypto.MaxPasswordBytes {
		return AuthResult{}, errs.New(errs.CodePasswordTooLong, "Password must be at most 72 bytes")
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return AuthResult{}, errs.New(errs.CodeUserExists, "User already exists")
	case !errors.Is(err, errs.ErrNotFound):
		return AuthResult{}, errs.Wrap(errs.CodeRegistrationError, "Registration failed", err)
	}

	u, err := s.users.Create(ctx, model.NewIdentity{
		Email:       email,
		Password:    in.Password,
		Name:        strings.TrimSpace(in.Name),
		Preferences: model.Preferences{},
	})
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return AuthResult{}, errs.New(errs.CodeDuplicateEmail, "Email already registered")
		}
		return AuthResult{}, errs.Wrap(errs.CodeRegistrationError, "Registration failed", err)
	}

	tokens, err := s.tokens.IssuePair(u.ID)
	if err != nil {
		return AuthResult{}, errs.Wrap(errs.CodeRegistrationError, "Registration failed", err)
	}
	s.touch(ctx, u)
	return AuthResult{Identity: u.Sanitized(), Tokens: tokens}, nil
}

// Login authenticates by email and password with throttling by (email, ip).
// A missing account and a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return AuthResult{}, errs.New(errs.CodeMissingFields, "Email and password are required")
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return AuthResult{}, errs.Wrap(errs.CodeLoginError, "Login failed", err)
	}
	if !allowed {
		return AuthResult{}, errs.Wrap(errs.CodeRateLimited, "Too many failed attempts, try again later", errs.ErrRateLimited)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return AuthResult{}, errs.Wrap(errs.CodeLoginError, "Login failed", err)
	}
	if err != nil || !s.users.CheckPassword(u, password) {
		blocked, _, ferr := s.lim.Failure(ctx, email, ipHash)
		if ferr != nil {
			s.log.Warn("limiter failure record", zap.Error(ferr))
		}
		if blocked {
			return AuthResult{}, errs.Wrap(errs.CodeRateLimited, "Too many failed attempts, try again later", errs.ErrRateLimited)
		}
		return AuthResult{}, errs.Wrap(errs.CodeInvalidCredentials, "Invalid credentials", errs.ErrUnauthorized)
	}

	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		s.log.Warn("limiter reset", zap.Error(err))
	}

	tokens, err := s.tokens.IssuePair(u.ID)
	if err != nil {
		return AuthResult{}, errs.Wrap(errs.CodeLoginError, "Login failed", err)
	}
	s.touch(ctx, u)
	return AuthResult{Identity: u.Sanitized(), Tokens: tokens}, nil
}

// touch stamps last-login on the store and on u. A store fault is logged, not returned:
// the credentials are already accepted and the token pair issued.
func (s *AuthService) touch(ctx context.Context, u *model.Identity) {
	at := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, at); err != nil {
		s.log.Warn("stamp last login", zap.Stringer("user_id", u.ID), zap.Error(err))
	}
	u.LastLoginAt = &at
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// itself is neither rotated nor revoked.
func (s *AuthService) Refresh(_ context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", errs.New(errs.CodeNoRefreshToken, "Refresh token required")
	}
	sub, err := s.tokens.Verify(refreshToken, token.Refresh)
	if err != nil {
		return "", errs.Wrap(errs.CodeInvalidRefreshToken, "Invalid refresh token", err)
	}
	access, _, err := s.tokens.Issue(sub, token.Access)
	if err != nil {
		return "", errs.Wrap(errs.CodeServerError, "Server error", err)
	}
	return access, nil
}

// Authenticate resolves a bearer access token to its sanitized identity.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (model.Identity, error) {
	if accessToken == "" {
		return model.Identity{}, errs.New(errs.CodeNoToken, "No token provided")
	}
	sub, err := s.tokens.Verify(accessToken, token.Access)
	switch {
	case errors.Is(err, token.ErrExpired):
		return model.Identity{}, errs.Wrap(errs.CodeTokenExpired, "Token expired", err)
	case err != nil:
		return model.Identity{}, errs.Wrap(errs.CodeInvalidToken, "Invalid token", err)
	}
	u, err := s.users.GetByID(ctx, sub)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.Identity{}, errs.Wrap(errs.CodeInvalidUser, "User not found", err)
	case err != nil:
		return model.Identity{}, errs.Wrap(errs.CodeServerError, "Server error", err)
	}
	return u.Sanitized(), nil
}

// Me returns the identity's bounded document history. A history fault degrades to
// an empty history.
func (s *AuthService) Me(ctx context.Context, u model.Identity) []model.HistoryEntry {
	if s.history == nil || s.historyLimit <= 0 {
		return nil
	}
	h, err := s.history.Recent(ctx, u.ID, s.historyLimit)
	if err != nil {
		s.log.Warn("load history", zap.Stringer("user_id", u.ID), zap.Error(err))
		return nil
	}
	return h
}

// UpdateProfile merges a partial profile update into the stored identity.
func (s *AuthService) UpdateProfile(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) (model.Identity, error) {
	if patch.Name != nil {
		n := strings.TrimSpace(*patch.Name)
		if n == "" {
			return model.Identity{}, errs.New(errs.CodeMissingFields, "Name must not be empty")
		}
		patch.Name = &n
	}
	if patch.Name == nil && len(patch.Preferences) == 0 {
		return model.Identity{}, errs.New(errs.CodeMissingFields, "Nothing to update")
	}
	u, err := s.users.UpdateProfile(ctx, id, patch)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.Identity{}, errs.Wrap(errs.CodeInvalidUser, "User not found", err)
	case err != nil:
		return model.Identity{}, errs.Wrap(errs.CodeServerError, "Server error", err)
	}
	return u.Sanitized(), nil
}
