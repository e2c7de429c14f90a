package limiter

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Memory is an in-process limiter with a failure window, lockout and attempt pacing.
type Memory struct {
	window   time.Duration
	maxFails int
	blockFor time.Duration
	every    rate.Limit
	burst    int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	fails        int
	firstFail    time.Time
	blockedUntil time.Time
	pace         *rate.Limiter
}

// NewMemory constructs a limiter that blocks a key for blockFor after maxFails failures
// within window, and paces attempts to perMinute per key (0 disables pacing).
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration, perMinute int) *Memory {
	every := rate.Inf
	burst := 0
	if perMinute > 0 {
		every = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	return &Memory{
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		every:    every,
		burst:    burst,
		now:      time.Now,
		entries:  map[string]*entry{},
	}
}

// NormalizeKey folds an email to the key used for accounting.
func NormalizeKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (l *Memory) get(key string) *entry {
	key = NormalizeKey(key)
	e, ok := l.entries[key]
	if !ok {
		e = &entry{pace: rate.NewLimiter(l.every, l.burst)}
		l.entries[key] = e
	}
	return e
}

// Allow reports whether an attempt is allowed now and a retry-after duration.
func (l *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.get(key)
	if e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}

	r := e.pace.ReserveN(now, 1)
	if !r.OK() {
		return false, 0, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d, nil
	}
	return true, 0, nil
}

// Success resets counters for key.
func (l *Memory) Success(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.get(key)
	e.fails = 0
	e.firstFail = time.Time{}
	e.blockedUntil = time.Time{}
	return nil
}

// Failure records a failed attempt; blocks key once the threshold is reached within the window.
func (l *Memory) Failure(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.get(key)
	if e.fails == 0 || now.Sub(e.firstFail) > l.window {
		e.fails = 0
		e.firstFail = now
	}
	e.fails++

	if l.maxFails > 0 && e.fails >= l.maxFails {
		e.blockedUntil = now.Add(l.blockFor)
		e.fails = 0
		return true, l.blockFor, nil
	}
	return false, 0, nil
}
