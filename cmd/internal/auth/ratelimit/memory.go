package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements Limiter with in-process fixed windows.
//
// Stale windows are cleared two ways: a periodic janitor (RunJanitor) and an
// amortized sweep that runs inline once the table grows past a threshold, so
// the map stays bounded even without the janitor goroutine.
type MemoryLimiter struct {
	budgets map[Route]Budget

	mu      sync.Mutex
	windows map[string]*window

	// sweepAbove triggers the inline sweep when the table exceeds this
	// many entries.
	sweepAbove int
}

type window struct {
	start time.Time
	count int
	ttl   time.Duration
}

// NewMemoryLimiter creates a limiter with the given budgets, or
// DefaultBudgets when nil.
func NewMemoryLimiter(budgets map[Route]Budget) *MemoryLimiter {
	if budgets == nil {
		budgets = DefaultBudgets()
	}
	return &MemoryLimiter{
		budgets:    budgets,
		windows:    make(map[string]*window),
		sweepAbove: 4096,
	}
}

// Allow implements Limiter.
func (m *MemoryLimiter) Allow(_ context.Context, key string, route Route, now time.Time) (bool, time.Duration, error) {
	b, ok := m.budgets[route]
	if !ok || b.Max <= 0 {
		return true, 0, nil
	}

	id := string(route) + ":" + key

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.windows) > m.sweepAbove {
		m.sweepLocked(now)
	}

	w, ok := m.windows[id]
	if !ok || now.Sub(w.start) >= b.Window {
		m.windows[id] = &window{start: now, count: 1, ttl: b.Window}
		return true, 0, nil
	}

	if w.count >= b.Max {
		return false, w.start.Add(b.Window).Sub(now), nil
	}
	w.count++
	return true, 0, nil
}

func (m *MemoryLimiter) sweepLocked(now time.Time) {
	for id, w := range m.windows {
		if now.Sub(w.start) >= w.ttl {
			delete(m.windows, id)
		}
	}
}

// RunJanitor clears expired windows every interval until the context is
// canceled. Run it in its own goroutine.
func (m *MemoryLimiter) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.mu.Lock()
			m.sweepLocked(now)
			m.mu.Unlock()
		}
	}
}

// tracked reports the number of live windows. Test hook.
func (m *MemoryLimiter) tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
