// Package codec defines the serialization contract for job payloads.
//
// The queue core treats payloads as opaque bytes; codecs only matter at
// the typed Definition boundary, where a producer's value is encoded on
// enqueue and decoded again inside the handler wrapper.
package codec

// Codec serializes typed payload values to and from bytes.
type Codec interface {
	// Marshal serializes a value to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into the given value.
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier (e.g., "json", "msgpack").
	Name() string
}

// Codec name constants.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

// Get returns a codec by name. Defaults to JSON.
func Get(name string) Codec {
	switch name {
	case NameMsgpack:
		return Msgpack{}
	case NameJSON, "":
		return JSON{}
	default:
		return JSON{}
	}
}
