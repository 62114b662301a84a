package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypePrefixFilter(t *testing.T) {
	tests := []struct {
		name     string
		prefixes []string
		typeName string
		want     bool
	}{
		{"empty accepts all", nil, "A", true},
		{"blank entries ignored", []string{" ", ""}, "A", true},
		{"prefix match", []string{"std::", "absl::"}, "absl::Cord", true},
		{"no match", []string{"std::"}, "llvm::SmallVector<int>", false},
		{"exact name", []string{"A"}, "A", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTypePrefixFilter(tt.prefixes).Allow(tt.typeName))
		})
	}

	var nilFilter *TypePrefixFilter
	assert.True(t, nilFilter.Allow("anything"))
}

func TestCallstackFilter(t *testing.T) {
	f := NewCallstackFilter([]string{"main", "_Z3foov"})

	assert.False(t, f.Empty())
	assert.True(t, f.Allow([]string{"malloc", "_Z3foov"}))
	assert.False(t, f.Allow([]string{"malloc", "_Z3barv"}))
	assert.False(t, f.Allow(nil))

	assert.True(t, NewCallstackFilter(nil).Allow([]string{"x"}))
}

func TestParseList(t *testing.T) {
	assert.Nil(t, ParseList(""))
	assert.Nil(t, ParseList("  "))
	assert.Equal(t, []string{"std::", "absl::"}, ParseList("std::, absl::,"))
}
