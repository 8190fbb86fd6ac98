package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/simplidoc/internal/api"
	"github.com/and161185/simplidoc/internal/crypto"
	"github.com/and161185/simplidoc/internal/metrics"
	"github.com/and161185/simplidoc/internal/model"
	"github.com/and161185/simplidoc/internal/repository"
	"github.com/and161185/simplidoc/internal/repository/memory"
	"github.com/and161185/simplidoc/internal/service"
	"github.com/and161185/simplidoc/internal/token"
)

var (
	accessSecret  = []byte("access-secret")
	refreshSecret = []byte("refresh-secret")
)

type env struct {
	users   *memory.Users
	history *memory.History
	tokens  *token.Service
	metrics *metrics.Auth
	srv     *Server
	ts      *httptest.Server
}

// storeOverride lets a test swap the identity store seen by the service.
type storeOverride func(repository.IdentityStore) repository.IdentityStore

func newEnv(t *testing.T, overrides ...storeOverride) *env {
	t.Helper()
	h, err := crypto.NewHasher(4)
	require.NoError(t, err)
	tokens, err := token.NewService(token.Config{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     7 * 24 * time.Hour,
		RefreshTTL:    30 * 24 * time.Hour,
	})
	require.NoError(t, err)

	e := &env{users: memory.NewUsers(h), history: memory.NewHistory(), tokens: tokens, metrics: metrics.NewAuth()}
	var store repository.IdentityStore = e.users
	for _, o := range overrides {
		store = o(store)
	}
	log := zaptest.NewLogger(t)
	svc := service.NewAuthService(store, tokens, log, service.WithHistory(e.history, 10))
	e.srv = New(svc, log, WithMetrics(e.metrics))
	e.ts = httptest.NewServer(e.srv.Handler())
	t.Cleanup(e.ts.Close)
	return e
}

func (e *env) issueWith(t *testing.T, sub uuid.UUID, secret []byte, exp time.Duration) string {
	t.Helper()
	ts, err := token.NewService(token.Config{
		AccessSecret:  secret,
		RefreshSecret: append([]byte("other-"), secret...),
		AccessTTL:     time.Hour,
		RefreshTTL:    time.Hour,
	}, token.WithClock(func() time.Time { return time.Now().Add(exp - time.Hour) }))
	require.NoError(t, err)
	tok, _, err := ts.Issue(sub, token.Access)
	require.NoError(t, err)
	return tok
}

func (e *env) createUser(t *testing.T, email string) *model.Identity {
	t.Helper()
	u, err := e.users.Create(context.Background(), model.NewIdentity{Email: email, Password: "secret1", Name: "A"})
	require.NoError(t, err)
	return u
}

func (e *env) do(t *testing.T, method, path, bearer string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rdr)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeErr(t *testing.T, b []byte) api.ErrorBody {
	t.Helper()
	var eb api.ErrorBody
	require.NoError(t, json.Unmarshal(b, &eb), string(b))
	return eb
}
