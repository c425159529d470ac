package deferred

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestManualClockRunsInDueOrder(t *testing.T) {
	c := NewManualClock()
	var order []string
	c.After(2*time.Second, func() { order = append(order, "b") })
	c.After(time.Second, func() { order = append(order, "a") })
	c.After(2*time.Second, func() { order = append(order, "c") })

	c.Advance(500 * time.Millisecond)
	assert.Empty(t, order)
	assert.Equal(t, 3, c.Pending())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 2*time.Second, c.Elapsed())
	assert.Zero(t, c.Pending())
}

func TestManualClockCancel(t *testing.T) {
	c := NewManualClock()
	ran := false
	h := c.After(time.Second, func() { ran = true })

	assert.True(t, h.Cancel())
	assert.False(t, h.Cancel())
	c.Advance(time.Hour)
	assert.False(t, ran)
}

func TestManualClockNestedScheduling(t *testing.T) {
	c := NewManualClock()
	var at []time.Duration
	c.After(time.Second, func() {
		at = append(at, c.Elapsed())
		c.After(time.Second, func() { at = append(at, c.Elapsed()) })
		c.After(time.Hour, func() { at = append(at, c.Elapsed()) })
	})

	c.Advance(3 * time.Second)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, at)
	assert.Equal(t, 1, c.Pending())
}

func TestManualClockFiredHandleCannotCancel(t *testing.T) {
	c := NewManualClock()
	h := c.After(0, func() {})
	c.Advance(0)
	assert.False(t, h.Cancel())
}

func TestScopeCloseMakesActionsInert(t *testing.T) {
	c := NewManualClock()
	s := NewScope(c)
	var ran atomic.Int32
	s.After(time.Second, func() { ran.Add(1) })
	s.After(2*time.Second, func() { ran.Add(1) })

	c.Advance(time.Second)
	require.EqualValues(t, 1, ran.Load())

	s.Close()
	s.Close()
	assert.True(t, s.Closed())
	assert.Error(t, s.Context().Err())

	c.Advance(time.Hour)
	assert.EqualValues(t, 1, ran.Load())

	h := s.After(0, func() { ran.Add(1) })
	assert.False(t, h.Cancel())
	c.Advance(time.Second)
	assert.EqualValues(t, 1, ran.Load())
}

// A scope wrapping a scheduler that ignores cancellation must still keep the
// action from running after Close.
type stubbornScheduler struct {
	fns []func()
}

func (s *stubbornScheduler) After(_ time.Duration, fn func()) Handle {
	s.fns = append(s.fns, fn)
	return stubbornHandle{}
}

type stubbornHandle struct{}

func (stubbornHandle) Cancel() bool { return false }

func TestScopeGuardsLateFire(t *testing.T) {
	inner := &stubbornScheduler{}
	s := NewScope(inner)
	ran := false
	s.After(time.Second, func() { ran = true })
	s.Close()

	require.Len(t, inner.fns, 1)
	inner.fns[0]()
	assert.False(t, ran)
}

func TestScopeCancelSingle(t *testing.T) {
	c := NewManualClock()
	s := NewScope(c)
	ran := false
	h := s.After(time.Second, func() { ran = true })
	assert.True(t, h.Cancel())
	assert.False(t, h.Cancel())
	c.Advance(time.Minute)
	assert.False(t, ran)
	assert.Zero(t, c.Pending())
}

func TestRealScheduler(t *testing.T) {
	done := make(chan struct{})
	RealScheduler{}.After(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("real scheduler did not fire")
	}

	h := RealScheduler{}.After(time.Hour, func() { t.Error("should not run") })
	assert.True(t, h.Cancel())
}

func TestRealSchedulerScopeClose(t *testing.T) {
	s := NewScope(RealScheduler{})
	var ran atomic.Bool
	s.After(50*time.Millisecond, func() { ran.Store(true) })
	s.Close()
	time.Sleep(100 * time.Millisecond)
	assert.False(t, ran.Load())
}
