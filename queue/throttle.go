package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// FunctionLimit configures rate limiting and concurrency for submissions
// of one function name.
type FunctionLimit struct {
	// Name is the function name (must match function.Descriptor.Name).
	Name string

	// MaxConcurrent limits how many in-flight submissions of this
	// function this process may have outstanding at once. Zero means
	// no limit.
	MaxConcurrent int

	// RateLimit is the maximum sustained submissions per second. Zero
	// disables rate limiting.
	RateLimit float64

	// RateBurst is the token-bucket burst size. Defaults to 1 if
	// RateLimit is set but RateBurst is zero.
	RateBurst int
}

type functionState struct {
	limit   FunctionLimit
	limiter *rate.Limiter
	active  int
}

// Manager rate-limits and caps concurrent Gearman submissions per
// function name, protecting the Gearman server from a thundering herd
// of enqueue_on_gearman callers. It holds no persisted state — every
// counter resets when the process restarts — so it does not run afoul of
// the library's "no persistence" scope.
//
// Adapted from the teacher's queue.Manager, which rate-limited by queue
// name and tenant; this library has no queue or tenant concept, so the
// key is the function name instead.
type Manager struct {
	mu    sync.Mutex
	funcs map[string]*functionState
}

// NewManager creates a Manager with the given per-function limits.
// Functions not listed here have no limits.
func NewManager(limits ...FunctionLimit) *Manager {
	m := &Manager{funcs: make(map[string]*functionState, len(limits))}
	for _, l := range limits {
		m.funcs[l.Name] = newFunctionState(l)
	}
	return m
}

func newFunctionState(l FunctionLimit) *functionState {
	fs := &functionState{limit: l}
	if l.RateLimit > 0 {
		burst := l.RateBurst
		if burst <= 0 {
			burst = 1
		}
		fs.limiter = rate.NewLimiter(rate.Limit(l.RateLimit), burst)
	}
	return fs
}

// Acquire checks the rate limit and concurrency cap for name. If the
// submission is allowed to proceed it increments the active counter and
// returns true. The caller MUST call Release once the submission
// completes (or is rejected downstream).
func (m *Manager) Acquire(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fs := m.funcs[name]
	if fs == nil {
		return true
	}
	if fs.limiter != nil && !fs.limiter.Allow() {
		return false
	}
	if fs.limit.MaxConcurrent > 0 && fs.active >= fs.limit.MaxConcurrent {
		return false
	}
	fs.active++
	return true
}

// Release decrements the active submission count for name.
func (m *Manager) Release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fs := m.funcs[name]; fs != nil && fs.active > 0 {
		fs.active--
	}
}

// SetLimit dynamically updates (or creates) a function's limit,
// preserving its current active count.
func (m *Manager) SetLimit(l FunctionLimit) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.funcs[l.Name]
	fs := newFunctionState(l)
	if existing != nil {
		fs.active = existing.active
	}
	m.funcs[l.Name] = fs
}

// ActiveCount returns the number of in-flight submissions for name.
func (m *Manager) ActiveCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fs := m.funcs[name]; fs != nil {
		return fs.active
	}
	return 0
}
