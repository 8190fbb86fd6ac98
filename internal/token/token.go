// Package token issues and verifies the signed access and refresh tokens.
package token

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/simplidoc/internal/model"
)

// Kind selects which secret and lifetime a token is issued with.
type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	switch k {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Verification failures. Every error returned by Verify is one of these.
var (
	// ErrInvalid covers malformed tokens, bad signatures, wrong kind and bad subjects.
	ErrInvalid = errors.New("token invalid")
	// ErrExpired is returned for a well-formed, correctly signed token past its expiry.
	ErrExpired = errors.New("token expired")
)

// Config fixes secrets and lifetimes at process start.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims is the signed payload: the subject id, issuance metadata and the token kind.
type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens. It holds no mutable state.
type Service struct {
	keys map[Kind][]byte
	ttls map[Kind]time.Duration
	now  func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for issuance and verification.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService validates cfg and constructs a Service.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: lifetimes must be positive")
	}
	s := &Service{
		keys: map[Kind][]byte{Access: cfg.AccessSecret, Refresh: cfg.RefreshSecret},
		ttls: map[Kind]time.Duration{Access: cfg.AccessTTL, Refresh: cfg.RefreshTTL},
		now:  time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Issue creates a signed HS256 token of the given kind for subject.
func (s *Service) Issue(subject uuid.UUID, kind Kind) (string, time.Time, error) {
	key, ok := s.keys[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("token: unknown kind %v", kind)
	}
	now := s.now()
	exp := now.Add(s.ttls[kind])
	claims := Claims{
		Type: kind.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign %v: %w", kind, err)
	}
	return signed, exp, nil
}

// IssuePair creates a fresh access and refresh token for subject.
func (s *Service) IssuePair(subject uuid.UUID) (model.Tokens, error) {
	access, exp, err := s.Issue(subject, Access)
	if err != nil {
		return model.Tokens{}, err
	}
	refresh, _, err := s.Issue(subject, Refresh)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

// Verify checks signature, kind and expiry and returns the subject id.
// Errors are ErrExpired for time-expired tokens and ErrInvalid for everything else.
func (s *Service) Verify(tok string, kind Kind) (uuid.UUID, error) {
	key, ok := s.keys[kind]
	if !ok || tok == "" {
		return uuid.Nil, ErrInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	var claims Claims
	_, err := parser.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, ErrExpired
	default:
		return uuid.Nil, ErrInvalid
	}

	if claims.Type != kind.String() {
		return uuid.Nil, ErrInvalid
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalid
	}
	return id, nil
}
