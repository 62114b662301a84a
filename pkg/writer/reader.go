package writer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/perf-analysis/fieldaccess/pkg/compression"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Decode decodes data in format into a value of type T.
func Decode[T any](format Format, data []byte) (T, error) {
	var out T
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &out)
	case FormatYAML:
		err = yaml.Unmarshal(data, &out)
	case FormatMsgpack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		err = dec.Decode(&out)
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	return out, err
}

// ReadFromFile reads and decodes path, decompressing it by extension.
func ReadFromFile[T any](path string) (T, error) {
	var zero T
	format, err := FormatFromPath(path)
	if err != nil {
		return zero, err
	}
	data, _, err := compression.ReadFile(path)
	if err != nil {
		return zero, err
	}
	out, err := Decode[T](format, data)
	if err != nil {
		return zero, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return out, nil
}
