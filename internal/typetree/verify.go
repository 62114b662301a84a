package typetree

import (
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

// Verify checks the structural invariants of the tree: children tile their
// parent exactly, offsets are consistent between parents and siblings, counts
// never grow towards the leaves, sizes are positive, and union members sit
// at offset 0 with consistent counts. Violations are logged when verbose.
func (t *TypeTree) Verify(verbose bool) bool {
	if t.Empty() {
		return false
	}
	v := verifier{verbose: verbose, log: utils.GetGlobalLogger()}
	return v.node(t.root, nil, nil)
}

type verifier struct {
	verbose bool
	log     utils.Logger
}

func (v verifier) fail(format string, args ...interface{}) bool {
	if v.verbose {
		v.log.Error(format, args...)
	}
	return false
}

func (v verifier) node(n, parent, olderSibling *Node) bool {
	ok := true

	if parent != nil && parent.Union {
		if n.OffsetBytes() != 0 && !n.IsPadding() {
			ok = v.fail("union member offset %d != 0 for %s", n.OffsetBytes(), n)
		}
		if olderSibling == nil {
			if parent.NumChildren() == 1 && n.Counters.Total != parent.Counters.Total {
				ok = v.fail("sole union member count %d != %d for %s", n.Counters.Total, parent.Counters.Total, n)
			}
		} else if n.FullSizeBytes() == olderSibling.FullSizeBytes() && n.Counters.Total != olderSibling.Counters.Total {
			ok = v.fail("union members of equal size have counts %d != %d for %s", n.Counters.Total, olderSibling.Counters.Total, n)
		}
		return ok
	}

	if n.Union {
		for _, c := range n.Children {
			if c.OffsetBytes() != 0 && !c.IsPadding() {
				ok = v.fail("union member offset %d != 0 for %s in %s", c.OffsetBytes(), c, n.Name)
			}
		}
		for _, c := range n.Children {
			if !v.node(c, n, olderSibling) {
				ok = false
			}
		}
		return ok
	}

	if len(n.Children) > 0 {
		var childCount uint64
		var childSize int64
		for _, c := range n.Children {
			childCount += c.Counters.Total
			childSize += c.SizeBits * c.Multiplicity
		}
		if childCount < n.Counters.Total {
			ok = v.fail("children count %d < %d for %s", childCount, n.Counters.Total, n)
		}
		if childSize != n.SizeBits {
			ok = v.fail("children size %d != %d for %s", childSize, n.SizeBits, n)
		}
	}

	if !n.IsPadding() && n.TypeName == "" {
		ok = v.fail("empty type name on non padding node %s", n)
	}

	if n.IsUnresolved() && v.verbose {
		v.log.Error("unresolved type for %s", n)
	}

	if parent != nil {
		if n.GlobalOffsetBits != parent.GlobalOffsetBits+n.OffsetBits {
			ok = v.fail("global offset %d != %d for %s", n.GlobalOffsetBits, parent.GlobalOffsetBits+n.OffsetBits, n)
		}
	} else if (n.GlobalOffsetBits != 0 || n.OffsetBits != 0) && v.verbose {
		v.log.Error("root offset not 0: %d, %d for %s", n.GlobalOffsetBits, n.OffsetBits, n)
	}

	if olderSibling != nil {
		if n.GlobalOffsetBits <= olderSibling.GlobalOffsetBits {
			ok = v.fail("siblings not ordered by global offset %d <= %d for %s", n.GlobalOffsetBits, olderSibling.GlobalOffsetBits, n)
		}
		if olderSibling.SizeBits+olderSibling.OffsetBits != n.OffsetBits ||
			olderSibling.GlobalOffsetBits+olderSibling.SizeBits != n.GlobalOffsetBits {
			ok = v.fail("siblings not contiguous: %s then %s", olderSibling, n)
		}
	} else if n.OffsetBits != 0 {
		ok = v.fail("first child offset %d != 0 for %s", n.OffsetBits, n)
	}

	if n.SizeBits <= 0 {
		ok = v.fail("size %d not positive for %s", n.SizeBits, n)
	}

	var older *Node
	for _, c := range n.Children {
		if !v.node(c, n, older) {
			ok = false
		}
		older = c
	}
	return ok
}
