// Package api is a reference implementation of the backend contract the
// session client talks to. It is used by the devserver command and by
// end-to-end tests; production deployments bring their own server.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-openapi/runtime/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/jmcleod/sessiongate/storage"
)

const (
	defaultTokenTTL     = 30 * time.Minute
	defaultDatabaseName = "users.db"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	users       *userStore
	tokens      *tokenIssuer
	rateLimiter *loginRateLimiter
	audit       *auditLogger

	issueTokens  bool
	databaseName string
	docsPrefix   string
	alertFn      AlertFunc
	registerer   prometheus.Registerer
	bcryptCost   int

	// signupMu serializes the uniqueness check and the insert.
	signupMu sync.Mutex
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithSigningKey sets the HMAC key for access tokens. Without it a random
// key is generated, so tokens do not survive a restart.
func WithSigningKey(key []byte) Option {
	return func(a *API) {
		a.tokens.key = append([]byte(nil), key...)
	}
}

// WithTokenTTL sets how long issued tokens remain valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(a *API) {
		a.tokens.ttl = ttl
	}
}

// WithoutTokens makes POST /login answer success without an access token,
// which is how older deployments of the backend behaved.
func WithoutTokens() Option {
	return func(a *API) {
		a.issueTokens = false
	}
}

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(a *API) {
		a.bcryptCost = cost
	}
}

// WithDatabaseName sets the name reported by GET /database-info.
func WithDatabaseName(name string) Option {
	return func(a *API) {
		a.databaseName = name
	}
}

// WithDocsPrefix sets the path the router is mounted under, so the docs
// page can find openapi.yaml. Defaults to the root.
func WithDocsPrefix(prefix string) Option {
	return func(a *API) {
		a.docsPrefix = prefix
	}
}

// WithAlertFunc registers a callback for login failure spikes.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// WithRegisterer exports audit event counters to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *API) {
		a.registerer = reg
	}
}

// New creates a new API instance storing users in repo. User records are
// sealed with dataKey, which must be 32 bytes.
func New(repo storage.Repository, dataKey []byte, opts ...Option) (*API, error) {
	users, err := newUserStore(repo, dataKey)
	if err != nil {
		return nil, err
	}
	tokens, err := newTokenIssuer(defaultTokenTTL)
	if err != nil {
		return nil, err
	}
	a := &API{
		users:        users,
		tokens:       tokens,
		rateLimiter:  newLoginRateLimiter(),
		audit:        newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil))),
		issueTokens:  true,
		databaseName: defaultDatabaseName,
		bcryptCost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.alertFn != nil || a.registerer != nil {
		a.audit.metrics = newAuthMetrics(a.registerer, a.alertFn)
	}
	return a, nil
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: a.docsPrefix + "/openapi.yaml",
		Path:    strings.TrimPrefix(a.docsPrefix+"/docs", "/"),
	}, nil))

	r.Group(func(r chi.Router) {
		r.Use(SecurityHeaders)
		r.Post("/signup", a.Signup)
		r.Post("/login", a.Login)
		r.Get("/database-info", a.DatabaseInfo)
		r.With(a.AuthMiddleware).Get("/protected", a.Protected)
	})

	return r
}
