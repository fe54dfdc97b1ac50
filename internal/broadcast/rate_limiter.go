package broadcast

import (
	"sync"
	"time"
)

const (
	rateWindow = time.Minute
	staleAfter = 5 * time.Minute
)

// RateLimiter caps how many messages one user may publish per minute.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	users     map[int64]*userWindow
	lastSweep time.Time
	now       func() time.Time
}

type userWindow struct {
	count int
	start time.Time
}

// NewRateLimiter creates a limiter allowing limit messages per user per
// minute. A limit of zero or less disables limiting.
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit: limit,
		users: make(map[int64]*userWindow),
		now:   time.Now,
	}
}

// Allow records one message for userID and reports whether it is within the
// limit.
func (rl *RateLimiter) Allow(userID int64) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > staleAfter {
		rl.sweep(now)
	}

	w, ok := rl.users[userID]
	if !ok {
		rl.users[userID] = &userWindow{count: 1, start: now}
		return true
	}

	if now.Sub(w.start) >= rateWindow {
		w.count = 1
		w.start = now
		return true
	}

	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// sweep drops windows idle for longer than staleAfter. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for id, w := range rl.users {
		if now.Sub(w.start) > staleAfter {
			delete(rl.users, id)
		}
	}
	rl.lastSweep = now
}
