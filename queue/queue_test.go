package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/job"
)

// ---------------------------------------------------------------------------
// Family sets
// ---------------------------------------------------------------------------

func TestNewSet_RejectsDuplicates(t *testing.T) {
	_, err := NewSet(Family{Name: "emails"}, Family{Name: "emails"})
	if !errors.Is(err, foreman.ErrInvalidConfig) {
		t.Errorf("duplicate family error = %v, want ErrInvalidConfig", err)
	}
}

func TestNewSet_RejectsEmptyName(t *testing.T) {
	_, err := NewSet(Family{BasePriority: 5})
	if !errors.Is(err, foreman.ErrInvalidConfig) {
		t.Errorf("empty name error = %v, want ErrInvalidConfig", err)
	}
}

func TestSet_GetAndNames(t *testing.T) {
	s, err := NewSet(Family{Name: "zeta"}, Family{Name: "alpha", BasePriority: 9})
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}

	f, ok := s.Get("alpha")
	if !ok || f.BasePriority != 9 {
		t.Errorf("Get(alpha) = %+v, %v", f, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}

	names := s.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("Names() = %v, want [alpha zeta]", names)
	}
}

func TestFamily_Normalize(t *testing.T) {
	f := Family{Name: "slow", StaleAfter: time.Hour}
	got := f.Normalize(2*time.Second, 25, 5*time.Minute)

	if got.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want process default", got.PollInterval)
	}
	if got.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want process default", got.BatchSize)
	}
	if got.StaleAfter != time.Hour {
		t.Errorf("StaleAfter = %v, explicit value must win", got.StaleAfter)
	}
}

func TestBuiltinFamilies(t *testing.T) {
	s, err := NewSet(BuiltinFamilies()...)
	if err != nil {
		t.Fatalf("built-in families must form a valid set: %v", err)
	}

	high, _ := s.Get(High)
	low, _ := s.Get(Low)
	def, _ := s.Get(Default)
	if !(high.BasePriority > def.BasePriority && def.BasePriority > low.BasePriority) {
		t.Error("built-in base priorities must order high > default > low")
	}

	rl, _ := s.Get(RateLimited)
	if rl.MaxConcurrency == 0 || rl.RateLimit == 0 {
		t.Error("ratelimited family should ship with a cap and a rate")
	}
}

// ---------------------------------------------------------------------------
// Classifier
// ---------------------------------------------------------------------------

func mustSet(t *testing.T) *Set {
	t.Helper()
	s, err := NewSet(BuiltinFamilies()...)
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}
	return s
}

func TestNewClassifier_RejectsUnknownFamily(t *testing.T) {
	_, err := NewClassifier(mustSet(t), Mapping{job.TypeSendEmail: "no-such-family"})
	if !errors.Is(err, foreman.ErrUnknownQueue) {
		t.Errorf("error = %v, want ErrUnknownQueue", err)
	}
}

func TestClassifier_Classify(t *testing.T) {
	c, err := NewClassifier(mustSet(t), DefaultMapping())
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	q, prio, err := c.Classify(job.TypeSendEmail)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if q != High {
		t.Errorf("queue = %q, want %q", q, High)
	}
	if prio != 100 {
		t.Errorf("base priority = %d, want 100", prio)
	}
}

func TestClassifier_UnmappedType(t *testing.T) {
	c, err := NewClassifier(mustSet(t), DefaultMapping())
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	_, _, err = c.Classify("mystery_work")
	if !errors.Is(err, foreman.ErrUnmappedType) {
		t.Errorf("error = %v, want ErrUnmappedType", err)
	}
	if c.Covers("mystery_work") {
		t.Error("Covers should be false for an unmapped type")
	}
}

func TestDefaultMapping_CoversBuiltinTypes(t *testing.T) {
	c, err := NewClassifier(mustSet(t), DefaultMapping())
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	for _, typ := range job.BuiltinTypes() {
		if !c.Covers(typ) {
			t.Errorf("built-in type %q has no mapping", typ)
		}
	}
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

func TestManager_UnconfiguredQueueAlwaysAllows(t *testing.T) {
	m := NewManager()
	if !m.Acquire("anything") {
		t.Fatal("expected Acquire to succeed for unconfigured family")
	}
	m.Release("anything")
}

func TestManager_MaxConcurrency(t *testing.T) {
	m := NewManager(Family{Name: "shots", MaxConcurrency: 2})

	if !m.Acquire("shots") {
		t.Fatal("first Acquire should succeed")
	}
	if !m.Acquire("shots") {
		t.Fatal("second Acquire should succeed")
	}
	if m.Acquire("shots") {
		t.Fatal("third Acquire should be rejected at cap 2")
	}

	m.Release("shots")
	if !m.Acquire("shots") {
		t.Fatal("Acquire should succeed again after Release")
	}
}

func TestManager_RateLimit(t *testing.T) {
	m := NewManager(Family{Name: "api", RateLimit: 1, RateBurst: 2})

	granted := 0
	for i := 0; i < 10; i++ {
		if m.Acquire("api") {
			granted++
			m.Release("api")
		}
	}
	if granted > 2 {
		t.Errorf("granted %d claims instantly, burst is 2", granted)
	}
}

func TestManager_ActiveCount(t *testing.T) {
	m := NewManager(Family{Name: "bulk", MaxConcurrency: 10})

	for i := 0; i < 3; i++ {
		if !m.Acquire("bulk") {
			t.Fatalf("Acquire %d failed", i)
		}
	}
	if got := m.ActiveCount("bulk"); got != 3 {
		t.Errorf("ActiveCount = %d, want 3", got)
	}

	m.Release("bulk")
	if got := m.ActiveCount("bulk"); got != 2 {
		t.Errorf("ActiveCount after release = %d, want 2", got)
	}
}

func TestManager_ConcurrentAcquireNeverExceedsCap(t *testing.T) {
	const limit = 5
	m := NewManager(Family{Name: "capped", MaxConcurrency: limit})

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxSeen := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !m.Acquire("capped") {
				return
			}
			mu.Lock()
			if a := m.ActiveCount("capped"); a > maxSeen {
				maxSeen = a
			}
			mu.Unlock()
			m.Release("capped")
		}()
	}
	wg.Wait()

	if maxSeen > limit {
		t.Errorf("active count reached %d, cap is %d", maxSeen, limit)
	}
}
