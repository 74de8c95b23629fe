package codec

import gojson "github.com/goccy/go-json"

// GoJSON is the default codec. It writes learned codebook files, whose
// patterns map holds one base64 vector per symbol, and the JSON form of
// encoding results such as variant.WGSResult and pgx.Profile. It decodes
// the same documents produced by JSON.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

// Name is "go-json".
func (GoJSON) Name() string { return "go-json" }
