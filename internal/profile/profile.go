// Package profile reads allocation profiles: one record per sampled
// allocation, each a call stack plus a byte-granular access histogram.
package profile

import (
	"fortio.org/safecast"

	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/writer"
)

// DefaultGranularityBytes is the width of one histogram bucket.
const DefaultGranularityBytes = 8

// Record is one sampled allocation. Histogram[i] counts accesses to bytes
// [i*granularity, (i+1)*granularity) of the allocated object.
type Record struct {
	CallStack    metadata.CallStack `json:"callstack" yaml:"callstack"`
	Histogram    []uint64           `json:"histogram" yaml:"histogram"`
	LLCMisses    []uint64           `json:"llc_misses,omitempty" yaml:"llc_misses,omitempty"`
	RequestBytes int64              `json:"request_bytes,omitempty" yaml:"request_bytes,omitempty"`
}

// Profile is a list of allocation records.
type Profile struct {
	GranularityBytes int64    `json:"granularity_bytes,omitempty" yaml:"granularity_bytes,omitempty"`
	Records          []Record `json:"records" yaml:"records"`
}

// Granularity returns the bucket width, defaulting to 8 bytes.
func (p *Profile) Granularity() int64 {
	if p.GranularityBytes > 0 {
		return p.GranularityBytes
	}
	return DefaultGranularityBytes
}

// Request returns the allocation size of the record: the explicit request
// size when present, otherwise the histogram length times granularity.
func (r *Record) Request(granularity int64) (int64, error) {
	if r.RequestBytes > 0 {
		return r.RequestBytes, nil
	}
	buckets, err := safecast.Conv[int64](len(r.Histogram))
	if err != nil {
		return 0, errors.InvalidArgumentf("histogram of %d buckets: %v", len(r.Histogram), err)
	}
	return buckets * granularity, nil
}

// Accesses sums the histogram.
func (r *Record) Accesses() uint64 {
	var total uint64
	for _, c := range r.Histogram {
		total += c
	}
	return total
}

// Validate rejects records without frames or histogram.
func (r *Record) Validate() error {
	if len(r.CallStack) == 0 {
		return errors.InvalidArgumentf("record without callstack")
	}
	if len(r.Histogram) == 0 {
		return errors.InvalidArgumentf("record %s without histogram", r.CallStack.Key())
	}
	if r.LLCMisses != nil && len(r.LLCMisses) != len(r.Histogram) {
		return errors.InvalidArgumentf("record %s: %d llc buckets for %d access buckets",
			r.CallStack.Key(), len(r.LLCMisses), len(r.Histogram))
	}
	return nil
}

// Load reads a profile from path. The format follows the extension (json,
// yaml or msgpack) with optional .gz or .zst compression.
func Load(path string) (*Profile, error) {
	p, err := writer.ReadFromFile[Profile](path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeParseError, "load profile "+path, err)
	}
	return &p, nil
}

// Decode decodes a profile from data in format.
func Decode(format writer.Format, data []byte) (*Profile, error) {
	p, err := writer.Decode[Profile](format, data)
	if err != nil {
		return nil, errors.Wrap(errors.CodeParseError, "decode profile", err)
	}
	return &p, nil
}

// Save writes the profile to path, encoded by extension.
func (p *Profile) Save(path string) error {
	return writer.WriteToFile(p, path)
}

// Add appends a record.
func (p *Profile) Add(cs metadata.CallStack, histogram []uint64) {
	p.Records = append(p.Records, Record{CallStack: cs, Histogram: histogram})
}
