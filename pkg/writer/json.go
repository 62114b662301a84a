// Package writer provides generic encoders for reports and interchange files.
package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/perf-analysis/fieldaccess/pkg/compression"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format names an encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// FormatFromPath infers the format from the file extension, ignoring a
// trailing compression extension.
func FormatFromPath(path string) (Format, error) {
	_, inner := compression.FromPath(path)
	switch strings.ToLower(filepath.Ext(inner)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("cannot infer format of %s", path)
	}
}

// Writer encodes values of type T.
type Writer[T any] interface {
	Write(data T, w io.Writer) error
}

// JSONWriter writes data as JSON.
type JSONWriter[T any] struct {
	// Indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	Indent string
}

// NewJSONWriter creates a new JSON writer with compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// Write writes the data as JSON to the writer.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	return encoder.Encode(data)
}

// YAMLWriter writes data as YAML.
type YAMLWriter[T any] struct{}

// Write writes the data as YAML to the writer.
func (YAMLWriter[T]) Write(data T, writer io.Writer) error {
	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// MsgpackWriter writes data as msgpack.
type MsgpackWriter[T any] struct{}

// Write writes the data as msgpack to the writer.
func (MsgpackWriter[T]) Write(data T, writer io.Writer) error {
	enc := msgpack.NewEncoder(writer)
	enc.SetCustomStructTag("json")
	return enc.Encode(data)
}

// ForFormat returns the writer for format.
func ForFormat[T any](format Format) (Writer[T], error) {
	switch format {
	case FormatJSON:
		return NewPrettyJSONWriter[T](), nil
	case FormatYAML:
		return YAMLWriter[T]{}, nil
	case FormatMsgpack:
		return MsgpackWriter[T]{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteToFile encodes data in the format implied by path and compresses it
// when path ends in .gz or .zst.
func WriteToFile[T any](data T, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	w, err := ForFormat[T](format)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := w.Write(data, &buf); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return compression.WriteFile(path, buf.Bytes())
}
