package blueprint

import (
	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

const (
	// SwissContainerName names trees synthesized from a swiss table.
	SwissContainerName = "absl::container_internal::raw_hash_set"
)

// SwissParams describes one swiss table backing array allocation. All sizes
// are in bits.
type SwissParams struct {
	SlotTypeName   string
	SlotSizeBits   int64
	AlignmentBits  int64
	WordBits       int64
	GroupWidth     int64
	RequestBits    int64
	Hashtablez     bool
	HashtablezBits int64
}

// SwissGeometry is the solved shape of a backing array.
type SwissGeometry struct {
	Capacity    int64
	Clones      int64
	PaddingBits int64
}

func (p SwissParams) validate() error {
	switch {
	case p.SlotTypeName == "":
		return errors.InvalidArgumentf("swiss slot type name is empty")
	case p.SlotSizeBits <= 0:
		return errors.InvalidArgumentf("swiss slot size %d is not positive", p.SlotSizeBits)
	case p.AlignmentBits <= 0:
		return errors.InvalidArgumentf("swiss alignment %d is not positive", p.AlignmentBits)
	case p.GroupWidth < 2:
		return errors.InvalidArgumentf("swiss group width %d is below 2", p.GroupWidth)
	case p.WordBits <= 0:
		return errors.InvalidArgumentf("swiss word size %d is not positive", p.WordBits)
	}
	return nil
}

func (p SwissParams) handleBits() int64 {
	if p.Hashtablez {
		return p.HashtablezBits
	}
	return 0
}

// Solve derives the capacity C from
// request = handle + word + (groupWidth-1)*8 + C*(slot+8)
// and the padding that aligns the slot array.
func (p SwissParams) Solve() (SwissGeometry, error) {
	if err := p.validate(); err != nil {
		return SwissGeometry{}, err
	}
	capacity := (p.RequestBits - p.handleBits() - (p.GroupWidth-1)*8 - p.WordBits) / (p.SlotSizeBits + 8)
	if capacity < 1 {
		return SwissGeometry{}, errors.InvalidArgumentf("request of %d bits holds no %s slot", p.RequestBits, p.SlotTypeName)
	}
	metadata := p.handleBits() + p.WordBits + (capacity+p.GroupWidth)*8
	return SwissGeometry{
		Capacity:    capacity,
		Clones:      p.GroupWidth - 1,
		PaddingBits: roundUp(metadata, p.AlignmentBits) - metadata,
	}, nil
}

// SwissMap returns the backing array template: growth_left, the control
// bytes with sentinel and clones, optional alignment padding and a slot
// array whose element is a childless placeholder typed SlotTypeName.
func SwissMap(p SwissParams) (*layout.ObjectLayout, error) {
	g, err := p.Solve()
	if err != nil {
		return nil, err
	}
	return render("swiss", struct {
		SwissParams
		SwissGeometry
	}{p, g})
}

// SwissTreeName is the root name of a synthesized backing array tree.
func SwissTreeName(slotTypeName string) string {
	return WrapType(SwissContainerName, slotTypeName)
}

// WrapType renders outer<inner>, keeping a space between closing brackets.
func WrapType(outer, inner string) string {
	if len(inner) > 0 && inner[len(inner)-1] == '>' {
		return outer + "<" + inner + " >"
	}
	return outer + "<" + inner + ">"
}
