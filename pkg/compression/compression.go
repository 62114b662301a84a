// Package compression reads and writes gzip or zstd framed files chosen by
// file extension or by magic bytes.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Type represents the compression algorithm used.
type Type uint8

const (
	// TypeNone represents no compression.
	TypeNone Type = iota
	// TypeGzip uses gzip compression.
	TypeGzip
	// TypeZstd uses zstd compression.
	TypeZstd
)

// String returns the algorithm name.
func (t Type) String() string {
	switch t {
	case TypeGzip:
		return "gzip"
	case TypeZstd:
		return "zstd"
	default:
		return "none"
	}
}

// FromPath returns the compression implied by the file extension and the path
// with that extension removed.
func FromPath(path string) (Type, string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return TypeGzip, strings.TrimSuffix(path, filepath.Ext(path))
	case ".zst", ".zstd":
		return TypeZstd, strings.TrimSuffix(path, filepath.Ext(path))
	default:
		return TypeNone, path
	}
}

// DetectType detects the compression type from magic bytes.
func DetectType(data []byte) Type {
	switch {
	case len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd:
		return TypeZstd
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return TypeGzip
	default:
		return TypeNone
	}
}

// Compress compresses data with t.
func Compress(t Type, data []byte) ([]byte, error) {
	switch t {
	case TypeNone:
		return data, nil
	case TypeGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to write gzip data: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
		return buf.Bytes(), nil
	case TypeZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	default:
		return nil, fmt.Errorf("unknown compression type: %d", t)
	}
}

// Decompress decompresses data framed with t.
func Decompress(t Type, data []byte) ([]byte, error) {
	switch t {
	case TypeNone:
		return data, nil
	case TypeGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case TypeZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unknown compression type: %d", t)
	}
}

// AutoDecompress decompresses data according to its magic bytes; data without
// a known frame is returned unchanged.
func AutoDecompress(data []byte) ([]byte, error) {
	return Decompress(DetectType(data), data)
}

// ReadFile reads path and decompresses it according to its extension. It
// returns the content and the path without the compression extension, which
// callers use to pick a decoder.
func ReadFile(path string) ([]byte, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	t, inner := FromPath(path)
	data, err := Decompress(t, raw)
	if err != nil {
		return nil, "", fmt.Errorf("decompress %s: %w", path, err)
	}
	return data, inner, nil
}

// WriteFile compresses data according to the extension of path and writes it.
func WriteFile(path string, data []byte) error {
	t, _ := FromPath(path)
	out, err := Compress(t, data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
