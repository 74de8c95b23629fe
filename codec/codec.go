// Package codec centralizes encoding of result structs, codebook files and
// clinical table files.
//
// Changing the codec used for a persisted artifact is a breaking change:
// files written by one codec may not decode with another.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	case "yaml":
		return YAML{}, true
	default:
		return nil, false
	}
}

// ForExtension picks a codec from a file extension (".json", ".yaml", ".yml").
func ForExtension(ext string) (Codec, bool) {
	switch ext {
	case ".json":
		return Default, true
	case ".yaml", ".yml":
		return YAML{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for tests and static fixtures.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
