package flow

import (
	"sync"

	"github.com/jmcleod/sessiongate/credential"
)

// Pending tracks the deferred automatic login started by a signup.
type Pending struct {
	sealed *credential.Sealed

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func newPending(sealed *credential.Sealed) *Pending {
	return &Pending{
		sealed: sealed,
		state:  StateRegistered,
		done:   make(chan struct{}),
	}
}

// Done is closed once the automatic login reaches a terminal state.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// State returns the current state.
func (p *Pending) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the failure that ended the automatic login, if any.
func (p *Pending) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// advance moves p to s unless it already finished.
func (p *Pending) advance(s State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return false
	}
	p.state = s
	return true
}

// complete moves p to a terminal state once and wipes the held credentials.
func (p *Pending) complete(s State, err error) bool {
	p.mu.Lock()
	if p.state.Terminal() {
		p.mu.Unlock()
		return false
	}
	p.state = s
	p.err = err
	p.mu.Unlock()

	p.sealed.Destroy()
	close(p.done)
	return true
}
