// Package nav carries navigation intents from the session core to whatever
// shell hosts it. The core only emits intents; executing them is the shell's job.
package nav

import (
	"fmt"
	"sync"
	"time"
)

// Route is an opaque view identifier understood by the hosting shell.
type Route string

const (
	RouteLogin     Route = "/login"
	RouteSignup    Route = "/signup"
	RouteDashboard Route = "/dashboard"
)

// Intent asks the shell to show Route. A non-zero Delay is informational:
// the core has already waited before emitting, the shell may use it for
// display only.
type Intent struct {
	Route Route
	Delay time.Duration
}

func (i Intent) String() string {
	if i.Delay > 0 {
		return fmt.Sprintf("%s (after %s)", i.Route, i.Delay)
	}
	return string(i.Route)
}

// Navigator receives navigation intents.
type Navigator interface {
	Navigate(Intent)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(Intent)

func (f NavigatorFunc) Navigate(i Intent) { f(i) }

// Discard drops every intent.
var Discard Navigator = NavigatorFunc(func(Intent) {})

// Bus fans intents out to subscribers. It is safe for concurrent use;
// subscribers are called synchronously in subscription order.
type Bus struct {
	mu   sync.RWMutex
	subs []subscriber
	next int
}

type subscriber struct {
	id int
	fn func(Intent)
}

var _ Navigator = (*Bus)(nil)

// NewBus creates a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Intent)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Navigate delivers i to every current subscriber.
func (b *Bus) Navigate(i Intent) {
	b.mu.RLock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(i)
	}
}

// Recorder captures intents in order. Useful for tests and for shells that
// poll instead of subscribing.
type Recorder struct {
	mu      sync.Mutex
	intents []Intent
}

var _ Navigator = (*Recorder)(nil)

func (r *Recorder) Navigate(i Intent) {
	r.mu.Lock()
	r.intents = append(r.intents, i)
	r.mu.Unlock()
}

// Intents returns a copy of everything recorded so far.
func (r *Recorder) Intents() []Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Intent(nil), r.intents...)
}

// Routes returns only the routes of the recorded intents.
func (r *Recorder) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Route, len(r.intents))
	for i, in := range r.intents {
		out[i] = in.Route
	}
	return out
}

// Last returns the most recent intent.
func (r *Recorder) Last() (Intent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.intents) == 0 {
		return Intent{}, false
	}
	return r.intents[len(r.intents)-1], true
}

// Reset forgets recorded intents.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.intents = nil
	r.mu.Unlock()
}
