package session

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// RefreshError is returned when a 403 could not be recovered because the
// refresh call failed or the session ended while it was in flight.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return e.Err.Error() }

func (e *RefreshError) Unwrap() error { return e.Err }

// ErrSessionEnded reports a refresh that completed after the session was
// logged out or replaced.
var ErrSessionEnded = errors.New("session ended during refresh")

// authTransport attaches the current access token to outgoing requests and, on a
// 403, refreshes the token and re-sends the request once. The re-sent request goes
// straight to base, so it is never retried again.
type authTransport struct {
	base http.RoundTripper
	c    *Client
}

func withBearer(req *http.Request, tok string) *http.Request {
	r := req.Clone(req.Context())
	if tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	} else {
		r.Header.Del("Authorization")
	}
	return r
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	sent := t.c.session.Snapshot().AccessToken
	resp, err := t.base.RoundTrip(withBearer(req, sent))
	if err != nil || resp.StatusCode != http.StatusForbidden || !replayable(req) {
		return resp, err
	}

	tok, err := t.c.refreshFrom(req.Context(), sent)
	discard(resp)
	if err != nil {
		return nil, err
	}

	retry := withBearer(req, tok)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	t.c.log.Debug("retrying after refresh", zap.String("method", req.Method), zap.String("path", req.URL.Path))
	return t.base.RoundTrip(retry)
}

// refreshFrom returns an access token newer than sent, refreshing at most once
// for all concurrent callers that saw the same stale token.
func (c *Client) refreshFrom(ctx context.Context, sent string) (string, error) {
	if cur := c.session.Snapshot().AccessToken; cur != "" && cur != sent {
		return cur, nil
	}
	v, err, shared := c.group.Do("refresh", func() (any, error) {
		st := c.session.Snapshot()
		if st.AccessToken != "" && st.AccessToken != sent {
			return st.AccessToken, nil
		}
		// the refresh outlives any single caller's cancellation but not the timeout
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()

		tok, err := c.callRefresh(rctx, st.RefreshToken)
		if err != nil {
			c.log.Info("refresh failed, logging out", zap.Error(err))
			c.persist.Lock()
			defer c.persist.Unlock()
			c.session.Dispatch(Logout{})
			if cerr := c.store.Clear(rctx); cerr != nil {
				c.log.Warn("clear tokens", zap.Error(cerr))
			}
			return "", &RefreshError{Err: err}
		}

		c.persist.Lock()
		defer c.persist.Unlock()
		if cur := c.session.Snapshot().RefreshToken; cur == "" || cur != st.RefreshToken {
			// logged out or logged in again while the refresh was in flight
			return "", &RefreshError{Err: ErrSessionEnded}
		}
		c.session.Dispatch(TokenRefreshed{AccessToken: tok})
		if serr := c.store.Save(rctx, tok, st.RefreshToken); serr != nil {
			c.log.Warn("persist refreshed token", zap.Error(serr))
		}
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	c.log.Debug("access token refreshed", zap.Bool("shared", shared))
	return v.(string), nil
}
