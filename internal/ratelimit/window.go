package ratelimit

import (
	"sync"
	"time"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour

	DefaultPerMinute = 60
	DefaultPerDay    = 5000
)

// Limiter is a local admission guard holding two sliding windows of
// dispatch timestamps, one per minute and one per day.
type Limiter struct {
	maxPerMinute int
	maxPerDay    int
	now          func() time.Time

	mu     sync.Mutex
	minute []time.Time
	day    []time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func New(maxPerMinute, maxPerDay int, opts ...Option) *Limiter {
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultPerMinute
	}
	if maxPerDay <= 0 {
		maxPerDay = DefaultPerDay
	}
	l := &Limiter{
		maxPerMinute: maxPerMinute,
		maxPerDay:    maxPerDay,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether another request may be dispatched now. It never
// blocks and never records anything.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute = prune(l.minute, now, minuteWindow)
	l.day = prune(l.day, now, dayWindow)
	return len(l.minute) < l.maxPerMinute && len(l.day) < l.maxPerDay
}

// Record notes one dispatched request in both windows.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute = append(l.minute, now)
	l.day = append(l.day, now)
}

// Counts returns the live minute and day counts after pruning.
func (l *Limiter) Counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute = prune(l.minute, now, minuteWindow)
	l.day = prune(l.day, now, dayWindow)
	return len(l.minute), len(l.day)
}

func prune(window []time.Time, now time.Time, size time.Duration) []time.Time {
	drop := 0
	for drop < len(window) && now.Sub(window[drop]) >= size {
		drop++
	}
	if drop == 0 {
		return window
	}
	// copy down so the backing array does not grow without bound
	n := copy(window, window[drop:])
	return window[:n]
}
