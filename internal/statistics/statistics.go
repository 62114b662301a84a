// Package statistics counts what happened to the allocation records of one
// histogram build and reports it.
package statistics

import (
	"fmt"
	"io"

	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

// Statistics holds the counters of a histogram build. Allocation counters
// count records; access counters sum histogram buckets.
type Statistics struct {
	TotalAllocations    uint64 `json:"total_allocations_count" yaml:"total_allocations_count"`
	TotalFoundType      uint64 `json:"total_found_type" yaml:"total_found_type"`
	DuplicateCallstacks uint64 `json:"duplicate_callstack_count" yaml:"duplicate_callstack_count"`
	TotalVerified       uint64 `json:"total_verified" yaml:"total_verified"`
	HeapAllocs          uint64 `json:"heap_alloc_count" yaml:"heap_alloc_count"`
	ContainerAllocs     uint64 `json:"container_alloc_count" yaml:"container_alloc_count"`
	TotalRecords        uint64 `json:"total_record_count" yaml:"total_record_count"`
	TotalAfterFiltering uint64 `json:"total_after_filtering" yaml:"total_after_filtering"`

	TotalAccesses        uint64 `json:"total_accesses" yaml:"total_accesses"`
	AccessesOnHeapAllocs uint64 `json:"total_accesses_on_heapallocs" yaml:"total_accesses_on_heapallocs"`
	AccessesOnContainers uint64 `json:"total_accesses_on_containers" yaml:"total_accesses_on_containers"`
	AccessesOnRecords    uint64 `json:"total_accesses_on_records" yaml:"total_accesses_on_records"`
}

// Merge adds the counters of other into s.
func (s *Statistics) Merge(other *Statistics) {
	if other == nil {
		return
	}
	s.TotalAllocations += other.TotalAllocations
	s.TotalFoundType += other.TotalFoundType
	s.DuplicateCallstacks += other.DuplicateCallstacks
	s.TotalVerified += other.TotalVerified
	s.HeapAllocs += other.HeapAllocs
	s.ContainerAllocs += other.ContainerAllocs
	s.TotalRecords += other.TotalRecords
	s.TotalAfterFiltering += other.TotalAfterFiltering
	s.TotalAccesses += other.TotalAccesses
	s.AccessesOnHeapAllocs += other.AccessesOnHeapAllocs
	s.AccessesOnContainers += other.AccessesOnContainers
	s.AccessesOnRecords += other.AccessesOnRecords
}

// Line is one reported counter.
type Line struct {
	Name    string  `json:"name"`
	Value   uint64  `json:"value"`
	Base    string  `json:"base,omitempty"`
	Percent float64 `json:"percent"`
}

// Percent returns value as a percentage of base, 0 when base is 0.
func Percent(value, base uint64) float64 {
	if base == 0 {
		return 0
	}
	return float64(value) * 100 / float64(base)
}

// Lines returns the counters in report order. Allocation counters are
// relative to the total allocations, access counters to the total accesses.
func (s *Statistics) Lines() []Line {
	alloc := func(name string, v uint64) Line {
		return Line{Name: name, Value: v, Base: "total_allocations_count", Percent: Percent(v, s.TotalAllocations)}
	}
	access := func(name string, v uint64) Line {
		return Line{Name: name, Value: v, Base: "total_accesses", Percent: Percent(v, s.TotalAccesses)}
	}
	return []Line{
		{Name: "total_allocations_count", Value: s.TotalAllocations, Percent: Percent(s.TotalAllocations, s.TotalAllocations)},
		alloc("total_found_type", s.TotalFoundType),
		alloc("duplicate_callstack_count", s.DuplicateCallstacks),
		alloc("total_verified", s.TotalVerified),
		alloc("heap_alloc_count", s.HeapAllocs),
		alloc("container_alloc_count", s.ContainerAllocs),
		alloc("total_record_count", s.TotalRecords),
		alloc("total_after_filtering", s.TotalAfterFiltering),
		{Name: "total_accesses", Value: s.TotalAccesses, Percent: Percent(s.TotalAccesses, s.TotalAccesses)},
		access("total_accesses_on_heapallocs", s.AccessesOnHeapAllocs),
		access("total_accesses_on_containers", s.AccessesOnContainers),
		access("total_accesses_on_records", s.AccessesOnRecords),
	}
}

// Report logs every counter with its percentage.
func (s *Statistics) Report(logger utils.Logger) {
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}
	for _, l := range s.Lines() {
		logger.Info("%s: %d (%.2f%%)", l.Name, l.Value, l.Percent)
	}
}

// Write prints the report as aligned text.
func (s *Statistics) Write(w io.Writer) error {
	for _, l := range s.Lines() {
		if _, err := fmt.Fprintf(w, "%-30s %12d %7.2f%%\n", l.Name, l.Value, l.Percent); err != nil {
			return err
		}
	}
	return nil
}
