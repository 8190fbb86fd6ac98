package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/simplidoc/internal/api"
	"github.com/and161185/simplidoc/internal/errs"
)

// APIError is an error response from the server. Message is meant for the user.
type APIError struct {
	Status  int
	Code    errs.Code
	Message string
}

func (e *APIError) Error() string { return e.Message }

// ErrIncompleteSession is returned by Bootstrap when storage holds an access
// token without its refresh token.
var ErrIncompleteSession = errors.New("stored session is incomplete, log in again")

// Client talks to the auth API and keeps a Session in sync with it.
type Client struct {
	base           *url.URL
	http           *http.Client
	raw            *http.Client
	session        *Session
	store          TokenStore
	log            *zap.Logger
	refreshTimeout time.Duration
	group          singleflight.Group

	// persist orders session changes with their writes to store.
	persist sync.Mutex
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport sets the underlying transport (default http.DefaultTransport).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.raw.Transport = rt
	}
}

// WithRequestTimeout bounds every API call, retries included.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.raw.Timeout = d
		c.http.Timeout = d
	}
}

// WithRefreshTimeout bounds the refresh call (default 10s).
func WithRefreshTimeout(d time.Duration) Option { return func(c *Client) { c.refreshTimeout = d } }

// WithLogger sets the logger (default no-op).
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New constructs a Client for the server at baseURL.
func New(baseURL string, store TokenStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if store == nil {
		store = &MemoryStore{}
	}
	c := &Client{
		base:           u,
		raw:            &http.Client{Transport: http.DefaultTransport, Timeout: 30 * time.Second},
		http:           &http.Client{Timeout: 30 * time.Second},
		session:        NewSession(),
		store:          store,
		log:            zap.NewNop(),
		refreshTimeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	c.http.Transport = &authTransport{base: c.raw.Transport, c: c}
	return c, nil
}

// Session returns the client's session.
func (c *Client) Session() *Session { return c.session }

// State returns a snapshot of the session state.
func (c *Client) State() State { return c.session.Snapshot() }

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func newRequest(ctx context.Context, method, target string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		var eb api.ErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Message == "" {
			return &APIError{Status: resp.StatusCode, Code: errs.CodeServerError, Message: http.StatusText(resp.StatusCode)}
		}
		return &APIError{Status: resp.StatusCode, Code: eb.Error, Message: eb.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do sends an authenticated JSON request and decodes the response into out.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	req, err := newRequest(ctx, method, c.endpoint(path), in)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		var re *RefreshError
		if errors.As(err, &re) {
			return re
		}
		return err
	}
	return decodeResponse(resp, out)
}

// callRefresh exchanges the refresh token without going through authTransport.
func (c *Client) callRefresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", &APIError{Status: http.StatusUnauthorized, Code: errs.CodeNoRefreshToken, Message: "Refresh token required"}
	}
	req, err := newRequest(ctx, http.MethodPost, c.endpoint("/auth/refresh"), api.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", err
	}
	resp, err := c.raw.Do(req)
	if err != nil {
		return "", err
	}
	var out api.RefreshResponse
	if err := decodeResponse(resp, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("refresh: empty token in response")
	}
	return out.Token, nil
}

func messageOf(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

// Bootstrap restores a persisted session. Without stored tokens the session
// ends up unauthenticated and not loading; with tokens, me() decides between
// Success and Failure, and a rejected token pair is discarded.
func (c *Client) Bootstrap(ctx context.Context) error {
	access, refresh, err := c.store.Load(ctx)
	if err != nil {
		c.session.Dispatch(SetLoading{Loading: false})
		return fmt.Errorf("load tokens: %w", err)
	}
	if access == "" {
		c.session.Dispatch(SetLoading{Loading: false})
		return nil
	}
	if refresh == "" {
		if cerr := c.store.Clear(ctx); cerr != nil {
			c.log.Warn("clear tokens", zap.Error(cerr))
		}
		c.session.Dispatch(Failure{Message: ErrIncompleteSession.Error()})
		return ErrIncompleteSession
	}

	c.session.Dispatch(Restore{AccessToken: access, RefreshToken: refresh})
	var out api.IdentityResponse
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		if cerr := c.store.Clear(ctx); cerr != nil {
			c.log.Warn("clear tokens", zap.Error(cerr))
		}
		c.session.Dispatch(Failure{Message: messageOf(err)})
		return err
	}
	st := c.session.Snapshot()
	c.session.Dispatch(Success{Identity: out.Identity, AccessToken: st.AccessToken, RefreshToken: st.RefreshToken})
	return nil
}

func (c *Client) authenticate(ctx context.Context, path string, in any) (api.AuthResponse, error) {
	c.session.Dispatch(Start{})
	var out api.AuthResponse
	if err := c.Do(ctx, http.MethodPost, path, in, &out); err != nil {
		c.session.Dispatch(Failure{Message: messageOf(err)})
		return api.AuthResponse{}, err
	}
	c.persist.Lock()
	defer c.persist.Unlock()
	c.session.Dispatch(Success{Identity: out.Identity, AccessToken: out.Token, RefreshToken: out.RefreshToken})
	if err := c.store.Save(ctx, out.Token, out.RefreshToken); err != nil {
		return out, fmt.Errorf("persist tokens: %w", err)
	}
	return out, nil
}

// Register creates an account and starts a session for it.
func (c *Client) Register(ctx context.Context, in api.RegisterRequest) (api.Identity, error) {
	out, err := c.authenticate(ctx, "/auth/register", in)
	return out.Identity, err
}

// Login starts a session. The returned time is the server's last-login stamp.
func (c *Client) Login(ctx context.Context, email, password string) (api.Identity, *time.Time, error) {
	out, err := c.authenticate(ctx, "/auth/login", api.LoginRequest{Email: email, Password: password})
	return out.Identity, out.LastLoginAt, err
}

// Me fetches the current identity and merges it into the session.
func (c *Client) Me(ctx context.Context) (api.Identity, error) {
	var out api.IdentityResponse
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return api.Identity{}, err
	}
	c.session.Dispatch(UpdateIdentity{Identity: out.Identity})
	return out.Identity, nil
}

// UpdateProfile changes name and/or preferences.
func (c *Client) UpdateProfile(ctx context.Context, in api.ProfileRequest) (api.Identity, error) {
	var out api.IdentityResponse
	if err := c.Do(ctx, http.MethodPatch, "/auth/me", in, &out); err != nil {
		return api.Identity{}, err
	}
	c.session.Dispatch(UpdateIdentity{Identity: out.Identity})
	return out.Identity, nil
}

// Logout notifies the server, then drops the session and the stored tokens
// whether or not the server call succeeded.
func (c *Client) Logout(ctx context.Context) error {
	if c.session.Snapshot().AccessToken != "" {
		var out api.MessageResponse
		if err := c.Do(ctx, http.MethodPost, "/auth/logout", nil, &out); err != nil {
			c.log.Debug("server logout", zap.Error(err))
		}
	}
	c.persist.Lock()
	defer c.persist.Unlock()
	c.session.Dispatch(Logout{})
	return c.store.Clear(ctx)
}

// Refresh obtains a new access token for the current session.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.refreshFrom(ctx, c.session.Snapshot().AccessToken)
}
