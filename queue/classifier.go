package queue

import (
	"fmt"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/job"
)

// Mapping assigns each job type to a family name.
type Mapping map[job.Type]string

// DefaultMapping covers the built-in job types against the built-in
// families: user-facing email and GDPR work runs hot, feed refreshes and
// expirations run in bulk, and browser capture goes through the capped
// rate-limited family.
func DefaultMapping() Mapping {
	return Mapping{
		job.TypeSendEmail:         High,
		job.TypeExportUserData:    High,
		job.TypeDeleteUserData:    High,
		job.TypeTagListing:        Default,
		job.TypeRefreshFeed:       Bulk,
		job.TypeExpireListing:     Bulk,
		job.TypeCaptureScreenshot: RateLimited,
	}
}

// classification is the resolved (queue, basePriority) pair for a type.
type classification struct {
	queue        string
	basePriority int
}

// Classifier resolves a job type to its queue family and base priority.
// It is built once at startup and read-only afterwards; classification
// never fails at runtime for a declared type. Remapping a type only
// affects jobs enqueued after the process restarts with the new mapping:
// the queue is stored on the row at enqueue time.
type Classifier struct {
	byType map[job.Type]classification
}

// NewClassifier validates the mapping against the family set and builds
// the classifier. Every mapping target must name a configured family.
func NewClassifier(set *Set, mapping Mapping) (*Classifier, error) {
	c := &Classifier{byType: make(map[job.Type]classification, len(mapping))}
	for jobType, familyName := range mapping {
		f, ok := set.Get(familyName)
		if !ok {
			return nil, fmt.Errorf("%w: type %q maps to %q", foreman.ErrUnknownQueue, jobType, familyName)
		}
		c.byType[jobType] = classification{queue: f.Name, basePriority: f.BasePriority}
	}
	return c, nil
}

// Classify returns the queue family name and base priority for a job
// type. Types absent from the mapping return foreman.ErrUnmappedType;
// the engine surfaces that synchronously at enqueue, never mid-poll.
func (c *Classifier) Classify(jobType job.Type) (string, int, error) {
	cl, ok := c.byType[jobType]
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", foreman.ErrUnmappedType, jobType)
	}
	return cl.queue, cl.basePriority, nil
}

// Covers reports whether the classifier has a mapping for the type.
func (c *Classifier) Covers(jobType job.Type) bool {
	_, ok := c.byType[jobType]
	return ok
}
