package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// maxFailures is the number of consecutive failures before lockout begins.
	maxFailures = 5
	baseLockout = 1 * time.Minute
	maxLockout  = 15 * time.Minute
	// attemptExpiry is how long after the last failure a record is forgotten.
	attemptExpiry = 1 * time.Hour
)

// strike counts consecutive login failures for one username.
type strike struct {
	count int
	last  time.Time
}

// until is the end of the lockout earned by the strike, or the zero time.
// The lockout doubles with every failure past maxFailures up to maxLockout.
func (s strike) until() time.Time {
	if s.count < maxFailures {
		return time.Time{}
	}
	lockout := maxLockout
	if shift := s.count - maxFailures; shift < 8 {
		lockout = min(baseLockout<<shift, maxLockout)
	}
	return s.last.Add(lockout)
}

// loginRateLimiter backs off failed logins per normalized username.
type loginRateLimiter struct {
	mu      sync.Mutex
	strikes map[string]strike
	now     func() time.Time
}

func newLoginRateLimiter() *loginRateLimiter {
	return &loginRateLimiter{
		strikes: make(map[string]strike),
		now:     time.Now,
	}
}

// check reports whether username is locked out and for how long.
func (rl *loginRateLimiter) check(username string) (blocked bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	s, ok := rl.strikes[username]
	if !ok {
		return false, 0
	}
	now := rl.now()
	if now.Sub(s.last) > attemptExpiry {
		delete(rl.strikes, username)
		return false, 0
	}
	if until := s.until(); now.Before(until) {
		return true, until.Sub(now)
	}
	return false, 0
}

func (rl *loginRateLimiter) recordFailure(username string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	s := rl.strikes[username]
	rl.strikes[username] = strike{count: s.count + 1, last: rl.now()}
}

func (rl *loginRateLimiter) recordSuccess(username string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.strikes, username)
}

// writeRateLimited sends 429 with a whole-second Retry-After.
func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := max(int(retryAfter.Seconds()), 1)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "Too many failed login attempts, try again later")
}
