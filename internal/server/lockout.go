package server

import (
	"sync"
	"time"
)

// maxTrackedClients triggers a sweep of stale entries before a new one is added.
const maxTrackedClients = 4096

// authAttempt tracks failed admin logins from one client.
type authAttempt struct {
	count       int
	lastAttempt time.Time
	lockedUntil time.Time
}

// authLockout blocks a client IP after repeated bad admin credentials.
type authLockout struct {
	mu              sync.Mutex
	attempts        map[string]*authAttempt
	maxAttempts     int
	lockoutDuration time.Duration
	windowDuration  time.Duration
	now             func() time.Time
}

func newAuthLockout(maxAttempts int, lockoutDuration, windowDuration time.Duration) *authLockout {
	return &authLockout{
		attempts:        make(map[string]*authAttempt),
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
		windowDuration:  windowDuration,
		now:             time.Now,
	}
}

// recordFailure counts a failed attempt and reports whether the client is
// now locked.
func (al *authLockout) recordFailure(key string) (locked bool, lockedUntil time.Time) {
	al.mu.Lock()
	defer al.mu.Unlock()

	now := al.now()
	if len(al.attempts) >= maxTrackedClients {
		al.sweepLocked(now)
	}
	a, ok := al.attempts[key]
	if !ok {
		a = &authAttempt{}
		al.attempts[key] = a
	}
	if now.Sub(a.lastAttempt) > al.windowDuration {
		a.count = 0
	}
	a.count++
	a.lastAttempt = now

	if a.count >= al.maxAttempts {
		a.lockedUntil = now.Add(al.lockoutDuration)
		return true, a.lockedUntil
	}
	return false, time.Time{}
}

// recordSuccess forgets earlier failures.
func (al *authLockout) recordSuccess(key string) {
	al.mu.Lock()
	defer al.mu.Unlock()
	delete(al.attempts, key)
}

// lockedFor returns how long key remains locked, or 0.
func (al *authLockout) lockedFor(key string) time.Duration {
	al.mu.Lock()
	defer al.mu.Unlock()

	a, ok := al.attempts[key]
	if !ok {
		return 0
	}
	if d := a.lockedUntil.Sub(al.now()); d > 0 {
		return d
	}
	return 0
}

// sweepLocked drops entries whose lock expired and which have been quiet for
// two windows. Callers hold al.mu.
func (al *authLockout) sweepLocked(now time.Time) {
	for key, a := range al.attempts {
		if now.After(a.lockedUntil) && now.Sub(a.lastAttempt) > 2*al.windowDuration {
			delete(al.attempts, key)
		}
	}
}
