package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

func TestIsIndirection(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"A*", true},
		{"A &", true},
		{"void ()", true},
		{"std::function<void ()>", true},
		{"A", false},
		{"int[4]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsIndirection(tt.name))
		})
	}
}

func TestArrayNames(t *testing.T) {
	assert.Equal(t, int64(4), ArrayMultiplicity("int[4]"))
	assert.Equal(t, int64(1), ArrayMultiplicity("int"))
	assert.Equal(t, int64(3), ArrayMultiplicity("int[2][3]"))
	assert.Equal(t, "int", ArrayElementType("int[4]"))
	assert.Equal(t, "int[2]", ArrayElementType("int[2][3]"))
}

func TestCleanTypeName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"A *", "A*"},
		{"const A *", "A*"},
		{"  A", "A"},
		{"A* *", "A**"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanTypeName(tt.in))
		})
	}

	assert.Equal(t, "A", DereferencePointer("A *"))
	assert.Equal(t, "A*", DereferencePointer("A*"))
}

func TestConsumeAngleBracket(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"std::allocator<A>", "A"},
		{"std::allocator<std::pair<const int, A> >", "std::pair<const int, A>"},
		{"A", "A"},
		{"X<A>::Y<B>", "A"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConsumeAngleBracket(tt.in))
		})
	}
}

func TestUnwrapAndCleanTypeName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"std::allocator<const A>", "A"},
		{"std::allocator<A *>", "A*"},
		{"muppet::instant::PolymorphicAllocator<A, false>", "A"},
		{"muppet::instant::PolymorphicAllocator<A, true>", "A"},
		{"std::allocator<std::pair<const int, A> >", "std::pair<const int, A>"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, UnwrapAndCleanTypeName(tt.in))
		})
	}
}

func TestStrategyKindString(t *testing.T) {
	assert.Equal(t, "SwissMapFlatHash", StrategySwissMapFlatHash.String())
	assert.Equal(t, "ADTDenseContainer", StrategyADTDenseContainer.String())
	assert.Equal(t, "StrategyKind(42)", StrategyKind(42).String())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Local ")
	assert.NoError(t, err)
	assert.Equal(t, ModeLocal, m)

	m, err = ParseMode("symbol_server")
	assert.NoError(t, err)
	assert.Equal(t, ModeSymbolServer, m)

	_, err = ParseMode("remote")
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Equal(t, "symbol_server, local", ValidModes())
}
