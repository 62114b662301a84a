package resolver

import (
	"strings"

	"github.com/perf-analysis/fieldaccess/internal/metadata"
)

type candidate struct {
	field     metadata.Field
	sizeBytes int64
	numFields int
}

// candidateOf resolves the type of a conflicting field. Indirections and
// arrays of known element types resolve without a descriptor of their own.
func (b *Builder) candidateOf(f metadata.Field) (candidate, bool) {
	if IsIndirection(f.TypeName) {
		return candidate{field: f, sizeBytes: b.store.PointerWidthBits() / 8}, true
	}
	if n := ArrayMultiplicity(f.TypeName); n > 1 {
		elem, err := b.store.LookupType(ArrayElementType(f.TypeName))
		if err != nil {
			return candidate{}, false
		}
		return candidate{field: f, sizeBytes: elem.Size * n, numFields: len(elem.Fields)}, true
	}
	desc, err := b.store.LookupType(f.TypeName)
	if err != nil {
		return candidate{}, false
	}
	return candidate{field: f, sizeBytes: desc.Size, numFields: len(desc.Fields)}, true
}

// beats orders candidates: larger size, then more fields, then inherited,
// then a name without a leading underscore. Zero means tied.
func (a candidate) beats(b candidate) int {
	switch {
	case a.sizeBytes != b.sizeBytes:
		return sign(a.sizeBytes > b.sizeBytes)
	case a.numFields != b.numFields:
		return sign(a.numFields > b.numFields)
	case a.field.Inherited != b.field.Inherited:
		return sign(a.field.Inherited)
	}
	au, bu := strings.HasPrefix(a.field.Name, "_"), strings.HasPrefix(b.field.Name, "_")
	if au != bu {
		return sign(!au)
	}
	return 0
}

func sign(win bool) int {
	if win {
		return 1
	}
	return -1
}

// resolveFieldConflicts keeps one field per distinct byte offset. Union
// members share offset 0 legitimately and are returned unchanged.
func (b *Builder) resolveFieldConflicts(desc *metadata.TypeDescriptor) []metadata.Field {
	if desc.Kind == metadata.KindUnion {
		return desc.Fields
	}

	offsets, index := desc.OffsetIndex()
	resolved := make([]metadata.Field, 0, len(offsets))
	for _, off := range offsets {
		idx := index[off]
		if len(idx) == 1 {
			resolved = append(resolved, desc.Fields[idx[0]])
			continue
		}

		var best *candidate
		for _, i := range idx {
			c, ok := b.candidateOf(desc.Fields[i])
			if !ok {
				continue
			}
			if best == nil {
				best = &c
				continue
			}
			switch c.beats(*best) {
			case 1:
				best = &c
			case 0:
				b.logger.Warn("ambiguous field conflict at offset %d of %s: keeping %s %s over %s %s",
					off, desc.Name, best.field.TypeName, best.field.Name, c.field.TypeName, c.field.Name)
			}
		}

		if best == nil {
			// nothing resolves; the first field becomes an unresolved node
			resolved = append(resolved, desc.Fields[idx[0]])
			continue
		}
		resolved = append(resolved, best.field)
	}
	return resolved
}
