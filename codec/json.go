package codec

import "encoding/json"

// JSON is encoding/json behind the Codec interface. Use it with
// codebook.WithCodec to read codebook files produced by tools that
// depend on encoding/json field handling. For codebook files and result
// documents its output is interchangeable with GoJSON.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name is "json".
func (JSON) Name() string { return "json" }

// Default encodes learned codebook files and JSON result documents.
var Default Codec = GoJSON{}
