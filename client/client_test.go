package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/sessiongate/client"
	"github.com/jmcleod/sessiongate/credential"
	"github.com/jmcleod/sessiongate/nav"
	"github.com/jmcleod/sessiongate/session"
)

// fakeBackend is a scriptable chi server that records request headers.
type fakeBackend struct {
	mu      sync.Mutex
	headers []http.Header
	paths   []string

	loginBody    string
	loginStatus  int
	signupStatus int
	signupBody   string
	protStatus   int
	protBody     string
	infoStatus   int
	infoBody     string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		loginStatus:  http.StatusOK,
		loginBody:    `{"access_token":"T1","token_type":"bearer"}`,
		signupStatus: http.StatusOK,
		signupBody:   `{"message":"User created successfully"}`,
		protStatus:   http.StatusOK,
		protBody:     `{"message":"Hello ivan"}`,
		infoStatus:   http.StatusOK,
		infoBody:     `{"total_users":3,"database":"users.db","engine":"sqlite"}`,
	}
}

func (f *fakeBackend) handler(status *int, body *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.headers = append(f.headers, r.Header.Clone())
		f.paths = append(f.paths, r.URL.Path)
		st, b := *status, *body
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(st)
		_, _ = w.Write([]byte(b))
	}
}

func (f *fakeBackend) serve(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/login", f.handler(&f.loginStatus, &f.loginBody))
	r.Post("/signup", f.handler(&f.signupStatus, &f.signupBody))
	r.Get("/protected", f.handler(&f.protStatus, &f.protBody))
	r.Get("/database-info", f.handler(&f.infoStatus, &f.infoBody))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeBackend) lastHeader() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.headers) == 0 {
		return nil
	}
	return f.headers[len(f.headers)-1]
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

func newTestClient(t *testing.T, baseURL string, store session.Store, rec *nav.Recorder, opts ...client.Option) *client.Client {
	t.Helper()
	opts = append([]client.Option{client.WithNavigator(rec)}, opts...)
	c, err := client.New(baseURL, store, opts...)
	require.NoError(t, err)
	return c
}

func TestNewNormalizesBaseURL(t *testing.T) {
	store := session.NewMemoryStore()

	c, err := client.New("localhost:8000/", store)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())

	c, err = client.New("https://api.example.com", store)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", c.BaseURL())

	_, err = client.New("  ", store)
	assert.Error(t, err)
}

func TestLoginStoresSession(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	store := session.NewMemoryStore()
	rec := &nav.Recorder{}
	c := newTestClient(t, srv.URL, store, rec)

	resp, err := c.Login(context.Background(), credential.Credentials{Username: "ivan", Password: "Secret1!"})
	require.NoError(t, err)
	assert.Equal(t, "T1", resp.Token())
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, session.Session{Token: "T1", Username: "ivan"}, store.Get())
	assert.Empty(t, rec.Intents())
}

func TestLoginNullTokenLeavesStoreEmpty(t *testing.T) {
	backend := newFakeBackend()
	backend.loginBody = `{"access_token":null}`
	srv := backend.serve(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, srv.URL, store, &nav.Recorder{})

	resp, err := c.Login(context.Background(), credential.Credentials{Username: "demo", Password: "demo123"})
	require.NoError(t, err)
	assert.Empty(t, resp.Token())
	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, session.Session{}, store.Get())
}

func TestBearerHeader(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, srv.URL, store, &nav.Recorder{})

	t.Run("AbsentWithoutSession", func(t *testing.T) {
		_, err := c.FetchDatabaseInfo(context.Background())
		require.NoError(t, err)
		h := backend.lastHeader()
		assert.Empty(t, h.Get("Authorization"))
		_, present := h["Authorization"]
		assert.False(t, present)
	})

	t.Run("PresentWithSession", func(t *testing.T) {
		require.NoError(t, store.Set("T9", "ivan"))
		_, err := c.FetchProtected(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer T9", backend.lastHeader().Get("Authorization"))
	})

	t.Run("RequestIDAndUserAgent", func(t *testing.T) {
		_, err := c.FetchProtected(context.Background())
		require.NoError(t, err)
		h := backend.lastHeader()
		assert.Len(t, h.Get("X-Request-ID"), 26)
		assert.Equal(t, "sessiongate/1.0", h.Get("User-Agent"))
	})
}

func TestCustomInterceptorRunsAfterBuiltins(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, srv.URL, store, &nav.Recorder{},
		client.WithUserAgent("custom/2"),
		client.WithRequestInterceptor(func(r *http.Request) error {
			r.Header.Set("X-Trace", r.Header.Get("User-Agent"))
			return nil
		}),
	)

	_, err := c.FetchDatabaseInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "custom/2", backend.lastHeader().Get("X-Trace"))
}

func TestInterceptorErrorIsNetworkFailure(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	c := newTestClient(t, srv.URL, session.NewMemoryStore(), &nav.Recorder{},
		client.WithRequestInterceptor(func(*http.Request) error { return errors.New("boom") }),
	)

	_, err := c.FetchDatabaseInfo(context.Background())
	require.Error(t, err)
	assert.Equal(t, client.KindNetwork, client.KindOf(err))
	assert.Zero(t, backend.calls())
}

func TestUnauthorizedForcesLogout(t *testing.T) {
	cases := []struct {
		name string
		call func(*client.Client) error
		set  func(*fakeBackend)
	}{
		{
			name: "FetchProtected",
			call: func(c *client.Client) error { _, err := c.FetchProtected(context.Background()); return err },
			set:  func(f *fakeBackend) { f.protStatus = http.StatusUnauthorized; f.protBody = `{"detail":"Invalid token"}` },
		},
		{
			name: "FetchDatabaseInfo",
			call: func(c *client.Client) error { _, err := c.FetchDatabaseInfo(context.Background()); return err },
			set:  func(f *fakeBackend) { f.infoStatus = http.StatusUnauthorized; f.infoBody = `{}` },
		},
		{
			name: "Login",
			call: func(c *client.Client) error {
				_, err := c.Login(context.Background(), credential.Credentials{Username: "ivan", Password: "wrong"})
				return err
			},
			set: func(f *fakeBackend) {
				f.loginStatus = http.StatusUnauthorized
				f.loginBody = `{"detail":"Invalid username or password"}`
			},
		},
		{
			name: "Register",
			call: func(c *client.Client) error {
				_, err := c.Register(context.Background(), credential.Credentials{Username: "billy", Password: "Secret1!"})
				return err
			},
			set: func(f *fakeBackend) {
				f.signupStatus = http.StatusUnauthorized
				f.signupBody = `{"detail":"Not authenticated"}`
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newFakeBackend()
			tc.set(backend)
			srv := backend.serve(t)
			store := session.NewMemoryStore()
			require.NoError(t, store.Set("T1", "ivan"))
			rec := &nav.Recorder{}
			c := newTestClient(t, srv.URL, store, rec)

			err := tc.call(c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, client.ErrAuthRejected))
			assert.Equal(t, client.KindAuthRejected, client.KindOf(err))
			assert.False(t, store.IsAuthenticated())
			assert.Equal(t, []nav.Route{nav.RouteLogin}, rec.Routes())
		})
	}
}

func TestServerErrorDetail(t *testing.T) {
	t.Run("DetailFromPayload", func(t *testing.T) {
		backend := newFakeBackend()
		backend.signupStatus = http.StatusConflict
		backend.signupBody = `{"detail":"User already exists"}`
		srv := backend.serve(t)
		store := session.NewMemoryStore()
		rec := &nav.Recorder{}
		c := newTestClient(t, srv.URL, store, rec)

		_, err := c.Register(context.Background(), credential.Credentials{Username: "billy", Password: "Abc123!"})
		require.Error(t, err)
		var ce *client.Error
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, client.KindServer, ce.Kind)
		assert.Equal(t, http.StatusConflict, ce.Status)
		assert.Equal(t, "User already exists", ce.Detail)
		assert.Equal(t, "User already exists", client.Message(err))
		assert.True(t, errors.Is(err, client.ErrServer))
		assert.Empty(t, rec.Intents())
	})

	t.Run("GenericMessage", func(t *testing.T) {
		backend := newFakeBackend()
		backend.infoStatus = http.StatusInternalServerError
		backend.infoBody = `oops`
		srv := backend.serve(t)
		store := session.NewMemoryStore()
		require.NoError(t, store.Set("T1", "ivan"))
		c := newTestClient(t, srv.URL, store, &nav.Recorder{})

		_, err := c.FetchDatabaseInfo(context.Background())
		require.Error(t, err)
		assert.Equal(t, client.KindServer, client.KindOf(err))
		assert.Equal(t, "request failed with status 500 (Internal Server Error)", client.Message(err))
		assert.True(t, store.IsAuthenticated(), "non-401 failures must not touch the session")
	})

	t.Run("NonStringDetailIgnored", func(t *testing.T) {
		backend := newFakeBackend()
		backend.signupStatus = http.StatusUnprocessableEntity
		backend.signupBody = `{"detail":[{"loc":["body","username"],"msg":"field required"}]}`
		srv := backend.serve(t)
		c := newTestClient(t, srv.URL, session.NewMemoryStore(), &nav.Recorder{})

		_, err := c.Register(context.Background(), credential.Credentials{Username: "x", Password: "y"})
		require.Error(t, err)
		assert.Equal(t, "request failed with status 422 (Unprocessable Entity)", client.Message(err))
	})
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Set("T1", "ivan"))
	rec := &nav.Recorder{}
	c := newTestClient(t, url, store, rec)

	_, err := c.FetchProtected(context.Background())
	require.Error(t, err)
	assert.Equal(t, client.KindNetwork, client.KindOf(err))
	assert.True(t, errors.Is(err, client.ErrNetwork))
	assert.Equal(t, "Unable to reach the server. Check your connection and try again.", client.Message(err))
	assert.True(t, store.IsAuthenticated())
	assert.Empty(t, rec.Intents())
}

func TestCanceledContext(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	c := newTestClient(t, srv.URL, session.NewMemoryStore(), &nav.Recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchDatabaseInfo(ctx)
	require.Error(t, err)
	assert.Equal(t, client.KindNetwork, client.KindOf(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDatabaseInfoExtra(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	c := newTestClient(t, srv.URL, session.NewMemoryStore(), &nav.Recorder{})

	info, err := c.FetchDatabaseInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, info.TotalUsers)
	assert.Equal(t, "users.db", info.Database)
	assert.Equal(t, "sqlite", info.Extra["engine"])
}

func TestFetchProtectedRaw(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	store := session.NewMemoryStore()
	require.NoError(t, store.Set("T1", "ivan"))
	c := newTestClient(t, srv.URL, store, &nav.Recorder{})

	raw, err := c.FetchProtected(context.Background())
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "Hello ivan", payload["message"])
}

func TestMetrics(t *testing.T) {
	backend := newFakeBackend()
	backend.protStatus = http.StatusUnauthorized
	backend.protBody = `{"detail":"Invalid token"}`
	srv := backend.serve(t)

	reg := prometheus.NewRegistry()
	m := client.NewMetrics(reg)
	store := session.NewMemoryStore()
	require.NoError(t, store.Set("T1", "ivan"))
	c := newTestClient(t, srv.URL, store, &nav.Recorder{}, client.WithMetrics(m))

	_, err := c.FetchDatabaseInfo(context.Background())
	require.NoError(t, err)
	_, err = c.FetchProtected(context.Background())
	require.Error(t, err)

	expected := `
# HELP sessiongate_client_forced_logouts_total Sessions cleared because the backend answered 401.
# TYPE sessiongate_client_forced_logouts_total counter
sessiongate_client_forced_logouts_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sessiongate_client_forced_logouts_total"))

	count, err := testutil.GatherAndCount(reg, "sessiongate_client_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
