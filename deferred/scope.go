package deferred

import (
	"context"
	"sync"
	"time"
)

// Scope groups actions owned by one hosting view. Closing the scope cancels
// every pending action, and an action that fires after Close returns does
// nothing at all.
type Scope struct {
	sched Scheduler

	mu     sync.Mutex
	tasks  map[*scopedTask]struct{}
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

var _ Scheduler = (*Scope)(nil)

type scopedTask struct {
	scope  *Scope
	handle Handle
	state  taskState
}

type taskState int

const (
	taskPending taskState = iota
	taskStarted
	taskCancelled
)

// NewScope creates an open scope scheduling on sched.
func NewScope(sched Scheduler) *Scope {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scope{
		sched:  sched,
		tasks:  make(map[*scopedTask]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// After schedules fn within the scope. On a closed scope nothing is scheduled
// and the returned handle is already cancelled.
func (s *Scope) After(d time.Duration, fn func()) Handle {
	t := &scopedTask{scope: s}

	s.mu.Lock()
	if s.closed {
		t.state = taskCancelled
		s.mu.Unlock()
		return t
	}
	s.tasks[t] = struct{}{}
	// Hold the lock so the task cannot fire before its handle is recorded.
	t.handle = s.sched.After(d, func() {
		if !t.start() {
			return
		}
		fn()
	})
	s.mu.Unlock()
	return t
}

func (t *scopedTask) start() bool {
	s := t.scope
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || t.state != taskPending {
		return false
	}
	t.state = taskStarted
	delete(s.tasks, t)
	return true
}

func (t *scopedTask) Cancel() bool {
	s := t.scope
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state != taskPending {
		return false
	}
	t.state = taskCancelled
	delete(s.tasks, t)
	if t.handle != nil {
		t.handle.Cancel()
	}
	return true
}

// Context is cancelled when the scope closes. Actions pass it to blocking
// calls so that teardown also abandons in-flight work.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close cancels every pending action. It is safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tasks := s.tasks
	s.tasks = nil
	for t := range tasks {
		t.state = taskCancelled
		if t.handle != nil {
			t.handle.Cancel()
		}
	}
	s.mu.Unlock()
	s.cancel()
}
