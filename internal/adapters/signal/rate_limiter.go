package signal

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/dkeye/Collab/internal/domain"
)

// EventRateLimiter throttles inbound events per principal, so opening more
// sockets does not buy more throughput.
type EventRateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.UserID]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewEventRateLimiter(r rate.Limit, b int) *EventRateLimiter {
	return &EventRateLimiter{
		limiters: make(map[domain.UserID]*rate.Limiter),
		rate:     r,
		burst:    b,
	}
}

func (rl *EventRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[uid]
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[uid] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

// Forget drops the principal's bucket once it has no connection left.
func (rl *EventRateLimiter) Forget(uid domain.UserID) {
	rl.mu.Lock()
	delete(rl.limiters, uid)
	rl.mu.Unlock()
}

func (rl *EventRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
