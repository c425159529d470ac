// Package flow drives the login, signup, logout and guarded-fetch state
// machines on top of an API client, a session store and a navigator.
//
// Delayed transitions (the pause before the dashboard redirect and the
// automatic login after signup) are scheduled on a deferred.Scheduler and
// owned by the controller's scope, so Close makes them inert.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmcleod/sessiongate/client"
	"github.com/jmcleod/sessiongate/credential"
	"github.com/jmcleod/sessiongate/deferred"
	"github.com/jmcleod/sessiongate/nav"
	"github.com/jmcleod/sessiongate/session"
)

const (
	DefaultLoginRedirectDelay = time.Second
	DefaultAutoLoginDelay     = 2 * time.Second
)

// Controller runs flows. Flows do not share state other than the session
// store and the scope that owns deferred actions, so any number of them may
// run at once.
type Controller struct {
	api    client.API
	store  session.Store
	nav    nav.Navigator
	sched  deferred.Scheduler
	logger *slog.Logger

	loginRedirectDelay time.Duration
	autoLoginDelay     time.Duration

	scope *deferred.Scope

	mu      sync.Mutex
	pending map[*Pending]struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler sets the clock deferred actions run on. Tests pass a
// deferred.ManualClock.
func WithScheduler(s deferred.Scheduler) Option {
	return func(c *Controller) {
		c.sched = s
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithLoginRedirectDelay sets the pause between a successful login and the
// dashboard intent.
func WithLoginRedirectDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.loginRedirectDelay = d
	}
}

// WithAutoLoginDelay sets the pause between registration and the automatic login.
func WithAutoLoginDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.autoLoginDelay = d
	}
}

// New creates a Controller.
func New(api client.API, store session.Store, navigator nav.Navigator, opts ...Option) *Controller {
	c := &Controller{
		api:                api,
		store:              store,
		nav:                navigator,
		sched:              deferred.RealScheduler{},
		logger:             slog.Default(),
		loginRedirectDelay: DefaultLoginRedirectDelay,
		autoLoginDelay:     DefaultAutoLoginDelay,
		pending:            make(map[*Pending]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.nav == nil {
		c.nav = nav.Discard
	}
	c.scope = deferred.NewScope(c.sched)
	c.logger = c.logger.With("component", "flow")
	return c
}

// LoginResult is the terminal outcome of a login flow.
type LoginResult struct {
	State      State
	Validation credential.Result
	// Banner is the message to show on the login view when State is StateFailed
	// for a reason other than validation.
	Banner string
	Err    error
}

// Login validates creds, submits them and, on an issued token, schedules
// the dashboard intent after the redirect delay.
func (c *Controller) Login(ctx context.Context, creds credential.Credentials) LoginResult {
	res := LoginResult{State: StateValidating}
	res.Validation = credential.ValidateLogin(creds.Username, creds.Password)
	if !res.Validation.Valid {
		res.State = StateFailed
		res.Err = validationError("login", res.Validation)
		return res
	}

	res.State = StateSubmitting
	err := c.submitLogin(ctx, creds)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		res.Banner = bannerFor(err)
		c.logger.Info("login failed", "username", creds.Username, "error", err)
		return res
	}

	res.State = StateSuccess
	c.logger.Info("login succeeded", "username", creds.Username)
	delay := c.loginRedirectDelay
	c.scope.After(delay, func() {
		c.nav.Navigate(nav.Intent{Route: nav.RouteDashboard, Delay: delay})
	})
	return res
}

// submitLogin calls the backend and reports a missing token as
// ErrNoAccessToken. A 401 has already been handled by the client.
func (c *Controller) submitLogin(ctx context.Context, creds credential.Credentials) error {
	resp, err := c.api.Login(ctx, creds)
	if err != nil {
		return err
	}
	if resp.Token() == "" {
		return ErrNoAccessToken
	}
	return nil
}

// SignupResult is the outcome of the synchronous part of a signup flow.
// When registration succeeds State is StateRegistered and Pending tracks
// the automatic login.
type SignupResult struct {
	State      State
	Validation credential.Result
	Message    string
	Banner     string
	Err        error
	Pending    *Pending
}

// Signup validates the form, registers the account and schedules an
// automatic login with the same credentials.
func (c *Controller) Signup(ctx context.Context, username, password, confirmation string) SignupResult {
	res := SignupResult{State: StateValidating}
	res.Validation = credential.ValidateSignup(username, password, confirmation)
	if !res.Validation.Valid {
		res.State = StateFailed
		res.Err = validationError("signup", res.Validation)
		return res
	}

	res.State = StateRegistering
	creds := credential.Credentials{Username: username, Password: password}
	reg, err := c.api.Register(ctx, creds)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		res.Banner = bannerFor(err)
		c.logger.Info("signup failed", "username", username, "error", err)
		return res
	}
	if reg != nil {
		res.Message = reg.Message
	}
	c.logger.Info("signup succeeded", "username", username)

	p := c.track(credential.Seal(creds))
	res.State = StateRegistered
	res.Pending = p
	delay := c.autoLoginDelay
	h := c.scope.After(delay, func() { c.autoLogin(p) })
	if c.scope.Closed() {
		h.Cancel()
		c.finish(p, StateCancelled, ErrClosed)
	}
	return res
}

func (c *Controller) autoLogin(p *Pending) {
	if !p.advance(StateAutoLoggingIn) {
		return
	}
	creds, err := p.sealed.Open()
	if err == nil {
		err = c.submitLogin(c.scope.Context(), creds)
	}
	if c.scope.Closed() {
		c.finish(p, StateCancelled, ErrClosed)
		return
	}
	if err != nil {
		c.logger.Info("automatic login failed", "username", p.sealed.Username(), "error", err)
		// Whatever session predates the signup does not belong to this user.
		if cerr := c.store.Clear(); cerr != nil {
			c.logger.Error("could not clear session after automatic login failure", "error", cerr)
		}
		c.nav.Navigate(nav.Intent{Route: nav.RouteLogin})
		c.finish(p, StateFallbackFailed, err)
		return
	}
	c.logger.Info("automatic login succeeded", "username", p.sealed.Username())
	c.nav.Navigate(nav.Intent{Route: nav.RouteDashboard})
	c.finish(p, StateSuccess, nil)
}

// Logout clears the session and sends the user to the login view. It is
// safe to call with no session. A persistence error is returned after the
// intent has been emitted.
func (c *Controller) Logout() error {
	username := c.store.Get().Username
	err := c.store.Clear()
	if err != nil {
		c.logger.Error("clearing session failed", "error", err)
	} else if username != "" {
		c.logger.Info("logged out", "username", username)
	}
	c.nav.Navigate(nav.Intent{Route: nav.RouteLogin})
	return err
}

// DashboardResult carries the data for the authenticated view. Either both
// payloads are set or neither is.
type DashboardResult struct {
	Username  string
	Protected json.RawMessage
	Info      *client.DatabaseInfo
	// Redirected is true when the flow sent the user to the login view.
	Redirected bool
	// Banner is set for recoverable failures; the view stays on the dashboard.
	Banner string
	Err    error
}

// LoadDashboard performs the session-guarded fetch for the authenticated view.
func (c *Controller) LoadDashboard(ctx context.Context) DashboardResult {
	if !c.store.IsAuthenticated() {
		c.nav.Navigate(nav.Intent{Route: nav.RouteLogin})
		return DashboardResult{Redirected: true}
	}
	username := c.store.Get().Username

	protected, err := c.api.FetchProtected(ctx)
	if err != nil {
		return c.dashboardFailure(err)
	}
	info, err := c.api.FetchDatabaseInfo(ctx)
	if err != nil {
		return c.dashboardFailure(err)
	}
	return DashboardResult{Username: username, Protected: protected, Info: info}
}

func (c *Controller) dashboardFailure(err error) DashboardResult {
	if client.KindOf(err) == client.KindAuthRejected {
		c.nav.Navigate(nav.Intent{Route: nav.RouteLogin})
		return DashboardResult{Redirected: true, Err: err}
	}
	c.logger.Warn("dashboard fetch failed", "error", err)
	return DashboardResult{Banner: bannerFor(err), Err: err}
}

// Close tears the controller down. Pending deferred actions are cancelled,
// in-flight automatic logins are abandoned, and nothing scheduled before
// Close will touch the store or navigate afterwards.
func (c *Controller) Close() {
	c.scope.Close()

	c.mu.Lock()
	pending := make([]*Pending, 0, len(c.pending))
	for p := range c.pending {
		pending = append(pending, p)
	}
	c.mu.Unlock()

	// The scope is closed, so an automatic login that already started will
	// see that and finish itself as cancelled.
	for _, p := range pending {
		if p.State() == StateRegistered {
			c.finish(p, StateCancelled, ErrClosed)
		}
	}
}

func (c *Controller) track(sealed *credential.Sealed) *Pending {
	p := newPending(sealed)
	c.mu.Lock()
	c.pending[p] = struct{}{}
	c.mu.Unlock()
	return p
}

func (c *Controller) finish(p *Pending, state State, err error) {
	if !p.complete(state, err) {
		return
	}
	c.mu.Lock()
	delete(c.pending, p)
	c.mu.Unlock()
}

func validationError(op string, r credential.Result) error {
	return &client.Error{Op: op, Kind: client.KindValidation, Detail: r.Error()}
}

func bannerFor(err error) string {
	if errors.Is(err, ErrNoAccessToken) {
		return noTokenMessage
	}
	return client.Message(err)
}

// String makes results readable in logs and test failures.
func (r LoginResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.State, r.Err)
	}
	return r.State.String()
}
