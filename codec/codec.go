// Package codec converts shop records to and from their cached forms.
//
// Two shapes are supported:
//   - flat hashes (EncodeFields/DecodeFields, Record[V]) for per-entity
//     entries stored as `<kind>:<id>` cache hashes
//   - whole-value bytes (Codec[V]) for collection entries such as order lists
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
