package job

import (
	"context"
	"fmt"

	"github.com/xraph/foreman/codec"
)

// Definition is a typed job definition with a handler function.
// T is the payload type; it must round-trip through the definition's
// codec (JSON unless overridden).
type Definition[T any] struct {
	// Type is the unique identifier for this job type.
	Type Type

	// Handler is the function that processes the decoded payload.
	Handler func(ctx context.Context, payload T) error

	// Codec encodes the payload at enqueue time and decodes it before
	// the handler runs. Defaults to codec.JSON.
	Codec codec.Codec

	// Opts carries default enqueue options for this job type.
	Opts Options
}

// NewDefinition creates a typed job definition with the JSON codec.
// Override the Codec field before registering to use another format.
func NewDefinition[T any](jobType Type, handler func(ctx context.Context, payload T) error, opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Type:    jobType,
		Handler: handler,
		Codec:   codec.JSON{},
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}

// Encode serializes a payload value with the definition's codec.
// The engine calls it on the enqueue side.
func (d *Definition[T]) Encode(v T) ([]byte, error) {
	c := d.Codec
	if c == nil {
		c = codec.JSON{}
	}
	data, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload for job %q: %w", d.Type, err)
	}
	return data, nil
}

// RegisterDefinition registers a typed job definition. The generic
// handler is wrapped in a closure that decodes the payload into T before
// calling the typed handler. A payload that fails to decode is a
// permanent failure: re-running it can never succeed.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) error {
	c := def.Codec
	if c == nil {
		c = codec.JSON{}
	}
	handler := func(ctx context.Context, payload []byte) error {
		var t T
		if len(payload) > 0 {
			if err := c.Unmarshal(payload, &t); err != nil {
				return Permanentf("decode payload for job %q: %v", def.Type, err)
			}
		}
		return def.Handler(ctx, t)
	}
	return r.Register(def.Type, handler)
}
