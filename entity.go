package foreman

import "time"

// Entity carries the audit timestamps shared by all persisted records.
// Embed it in record structs; stores persist both fields verbatim.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity with both timestamps set to now (UTC).
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch advances UpdatedAt. Transition operations call it before
// persisting a mutation.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
