// Package queue defines queue families, the static job-type classifier,
// and the claim-side concurrency/rate manager.
package queue

import (
	"fmt"
	"slices"
	"time"

	"github.com/xraph/foreman"
)

// Built-in family names.
const (
	Default     = "default"
	High        = "high"
	Low         = "low"
	Bulk        = "bulk"
	RateLimited = "ratelimited"
)

// Family is the static configuration for one queue family. Families are
// configuration, not rows: they load once at process start and never
// mutate while the pool runs.
type Family struct {
	// Name is the queue identifier (matches the job.Queue field).
	Name string

	// BasePriority is assigned to jobs enqueued into this family unless
	// the producer overrides it. Higher values are offered first.
	BasePriority int

	// MaxConcurrency caps how many jobs of this family may be
	// processing simultaneously, across every worker process. Zero
	// means uncapped. Use for resource-heavy work such as headless
	// browser capture.
	MaxConcurrency int

	// StaleAfter is the lease age past which a processing job counts as
	// abandoned and becomes claimable again. Zero means the process
	// default. Slow families (AI calls) want longer values.
	StaleAfter time.Duration

	// PollInterval is this family's poll cadence. Zero means the
	// process default.
	PollInterval time.Duration

	// BatchSize is how many candidates an uncapped family fetches per
	// tick. Zero means the process default.
	BatchSize int

	// RateLimit is the maximum sustained claims per second from this
	// family in one process. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the token-bucket burst size. Defaults to 1 when
	// RateLimit is set and RateBurst is zero.
	RateBurst int
}

// Normalize returns a copy with zero-valued cadence fields filled from
// the process defaults.
func (f Family) Normalize(pollInterval time.Duration, batchSize int, staleAfter time.Duration) Family {
	if f.PollInterval <= 0 {
		f.PollInterval = pollInterval
	}
	if f.BatchSize <= 0 {
		f.BatchSize = batchSize
	}
	if f.StaleAfter <= 0 {
		f.StaleAfter = staleAfter
	}
	return f
}

// BuiltinFamilies returns the five stock families. Applications may use
// them as-is, tune them, or define their own set.
func BuiltinFamilies() []Family {
	return []Family{
		{Name: Default, BasePriority: 0},
		{Name: High, BasePriority: 100},
		{Name: Low, BasePriority: -50},
		{Name: Bulk, BasePriority: -100, BatchSize: 50},
		{Name: RateLimited, BasePriority: 0, MaxConcurrency: 2, RateLimit: 1, RateBurst: 1},
	}
}

// Set is an immutable collection of families keyed by name.
type Set struct {
	families map[string]Family
}

// NewSet builds a Set, rejecting unnamed or duplicate families.
func NewSet(families ...Family) (*Set, error) {
	s := &Set{families: make(map[string]Family, len(families))}
	for _, f := range families {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: family with empty name", foreman.ErrInvalidConfig)
		}
		if _, dup := s.families[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate family %q", foreman.ErrInvalidConfig, f.Name)
		}
		s.families[f.Name] = f
	}
	return s, nil
}

// Get returns the family with the given name.
func (s *Set) Get(name string) (Family, bool) {
	f, ok := s.families[name]
	return f, ok
}

// Names returns all family names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.families))
	for name := range s.families {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
