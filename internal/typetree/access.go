package typetree

import (
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// Overlap reports whether [a1, a2) and [b1, b2) intersect.
func Overlap(a1, a2, b1, b2 int64) bool {
	return max(a2, b2)-min(a1, b1) < (a2-a1)+(b2-b1)
}

func (n *Node) increment(count uint64, at AccessType) {
	n.Counters.Total += count
	switch at {
	case AccessLoadStore:
		n.Counters.Access += count
	case AccessLLCMiss:
		n.Counters.LLCMiss += count
	}
}

// RecordAccess adds count to every node overlapping the granularity wide
// access at offsetBytes from the root of n's tree. n is treated as a single
// element at its own global offset.
func (n *Node) RecordAccess(offsetBytes int64, count uint64, granularity int64, at AccessType) bool {
	return n.recordAccess(offsetBytes, count, granularity, at, []int64{0})
}

// recordAccess handles nodes replicated by array ancestors: elementOffsets
// holds, relative to the node's global offset, the start of every replica
// implied by the multiplicities and sizes of all ancestors.
func (n *Node) recordAccess(offsetBytes int64, count uint64, granularity int64, at AccessType, elementOffsets []int64) bool {
	accessEnd := offsetBytes + granularity
	base := n.GlobalOffsetBytes()
	full := n.FullSizeBytes()

	if !Overlap(offsetBytes, accessEnd, base, base+elementOffsets[len(elementOffsets)-1]+full) {
		return false
	}

	for _, off := range elementOffsets {
		start := base + off
		if Overlap(offsetBytes, accessEnd, start, start+full) {
			n.increment(count, at)
		}
	}

	next := make([]int64, 0, len(elementOffsets)*int(max(n.Multiplicity, 1)))
	for i := int64(0); i < n.Multiplicity; i++ {
		for _, off := range elementOffsets {
			next = append(next, off+i*n.SizeBytes())
		}
	}
	if len(next) == 0 {
		return len(n.Children) == 0
	}

	overlapInChildren := len(n.Children) == 0
	for _, c := range n.Children {
		if c.recordAccess(offsetBytes, count, granularity, at, next) {
			overlapInChildren = true
		}
	}
	return overlapInChildren
}

// RecordAccess records one access. Offsets at or past the end of the root
// wrap around, so bulk allocations of the type share one tree.
func (t *TypeTree) RecordAccess(offsetBytes int64, count uint64, granularity int64, at AccessType) bool {
	if t.Empty() {
		return false
	}
	if full := t.root.FullSizeBytes(); full > 0 && offsetBytes >= full {
		offsetBytes %= full
	}
	return t.root.RecordAccess(offsetBytes, count, granularity, at)
}

// CollapseHistogram folds histogram into 1+(collapsedSizeBytes-1)/granularity
// buckets by summing strided entries; a trailing partial stride is dropped.
func CollapseHistogram(histogram []uint64, collapsedSizeBytes, granularity int64) []uint64 {
	newLen := 1 + (collapsedSizeBytes-1)/granularity
	strides := int64(len(histogram)) / newLen
	collapsed := make([]uint64, newLen)
	for i := int64(0); i < strides; i++ {
		for j := int64(0); j < newLen; j++ {
			collapsed[j] += histogram[i*newLen+j]
		}
	}
	return collapsed
}

// RecordAccessHistogram records one access per bucket, bucket i covering
// bytes [i*granularity, (i+1)*granularity). A histogram at least twice the
// root size is a bulk allocation and is folded onto one instance first.
// The counts are recorded even when the fold does not divide evenly; that
// case is reported as FailedPrecondition.
func (t *TypeTree) RecordAccessHistogram(histogram []uint64, granularity int64, at AccessType) error {
	if len(histogram) == 0 {
		return errors.InvalidArgumentf("histogram size is 0")
	}
	if granularity != DefaultGranularityBytes {
		return errors.Unimplementedf("access granularity must be %d bytes, got %d", DefaultGranularityBytes, granularity)
	}
	if t.Empty() {
		return errors.InvalidArgumentf("tree is empty")
	}

	sizeBytes := int64(len(histogram)) * granularity
	full := t.root.FullSizeBytes()
	buckets := histogram
	if sizeBytes > full && sizeBytes >= 2*full {
		buckets = CollapseHistogram(histogram, full, granularity)
	}

	for i, count := range buckets {
		t.root.RecordAccess(int64(i)*granularity, count, granularity, at)
	}

	if len(histogram)%len(buckets) != 0 {
		return errors.FailedPreconditionf("histogram size %d is not a multiple of the collapsed size %d",
			len(histogram), len(buckets))
	}
	return nil
}
