// Package codec centralizes snapshot payload encoding.
//
// Codec selection is a breaking-change boundary: persisted artifacts record
// the codec name in their header, and a snapshot written by one codec may
// not decode with another.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// Snapshot files store the codec name in their header so they can be opened
// with the codec that produced them.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used for newly written snapshots. Existing artifacts
// are self-describing and are decoded with the codec named in their header.
var Default Codec = GoJSON{}
