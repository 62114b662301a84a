package layout

import (
	"bytes"
	"io"

	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/writer"
)

// Encode writes l to w in format (json, yaml or msgpack).
func Encode(format writer.Format, w io.Writer, l *ObjectLayout) error {
	enc, err := writer.ForFormat[*ObjectLayout](format)
	if err != nil {
		return errors.InvalidArgumentf("%v", err)
	}
	if err := enc.Write(l, w); err != nil {
		return errors.Wrap(errors.CodeInternal, "encode layout", err)
	}
	return nil
}

// Marshal returns the encoding of l in format.
func Marshal(format writer.Format, l *ObjectLayout) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(format, &buf, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a layout in format.
func Decode(format writer.Format, data []byte) (*ObjectLayout, error) {
	l, err := writer.Decode[ObjectLayout](format, data)
	if err != nil {
		return nil, errors.Wrap(errors.CodeParseError, "decode layout", err)
	}
	return &l, nil
}

// ReadFile reads a layout whose format follows the file extension.
func ReadFile(path string) (*ObjectLayout, error) {
	l, err := writer.ReadFromFile[ObjectLayout](path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeParseError, "read layout", err)
	}
	return &l, nil
}

// WriteFile writes a layout in the format implied by the file extension.
func WriteFile(path string, l *ObjectLayout) error {
	if err := writer.WriteToFile(l, path); err != nil {
		return errors.Wrap(errors.CodeInternal, "write layout", err)
	}
	return nil
}
