package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// familyState tracks runtime claim state for a single family.
type familyState struct {
	family  Family
	limiter *rate.Limiter
	active  int
}

// Manager enforces per-family concurrency and claim-rate budgets inside
// one worker process. The poller acquires a slot before claiming and
// releases it when execution finishes; for capped families the store's
// processing count is the cross-process authority and the Manager is the
// local fast path. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	families map[string]*familyState
}

// NewManager creates a Manager for the given families. Families not
// listed have no local limits.
func NewManager(families ...Family) *Manager {
	m := &Manager{
		families: make(map[string]*familyState, len(families)),
	}
	for _, f := range families {
		m.families[f.Name] = newFamilyState(f)
	}
	return m
}

func newFamilyState(f Family) *familyState {
	fs := &familyState{family: f}
	if f.RateLimit > 0 {
		burst := f.RateBurst
		if burst <= 0 {
			burst = 1
		}
		fs.limiter = rate.NewLimiter(rate.Limit(f.RateLimit), burst)
	}
	return fs
}

// Acquire checks the family's rate and concurrency budget. When the
// claim may proceed it increments the active counter and returns true.
// The caller MUST call Release when the job finishes.
func (m *Manager) Acquire(queue string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fs := m.families[queue]
	if fs == nil {
		return true
	}
	if fs.limiter != nil && !fs.limiter.Allow() {
		return false
	}
	if fs.family.MaxConcurrency > 0 && fs.active >= fs.family.MaxConcurrency {
		return false
	}
	fs.active++
	return true
}

// Release decrements the active count for the family.
func (m *Manager) Release(queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fs := m.families[queue]; fs != nil && fs.active > 0 {
		fs.active--
	}
}

// ActiveCount returns the number of locally active jobs for a family.
func (m *Manager) ActiveCount(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fs := m.families[queue]; fs != nil {
		return fs.active
	}
	return 0
}
