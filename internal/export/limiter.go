package export

// limiter.go bounds the number of exports running at once. Each export may
// hold a full payload in memory, so a burst of downloads is queued for up to
// maxWait and then refused with ErrBusy.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when no export slot frees up within the wait time.
var ErrBusy = errors.New("too many concurrent exports, please try again later")

const (
	DefaultMaxConcurrent = 8
	DefaultMaxWait       = 10 * time.Second
)

// Limiter is a counting semaphore for export requests.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter allows maxConcurrent exports at once; callers wait at most
// maxWait for a slot. Non-positive values select the defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. It returns ErrBusy when the wait expires and the
// context error when ctx ends first. Every nil return must be paired with
// Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrBusy
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.slots
}

// ActiveCount returns the number of exports holding a slot.
func (l *Limiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no export holds a slot or ctx ends.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a point-in-time view of a Limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status reports current usage for health checks.
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
