// Package filter holds the allocation filters of the histogram pipeline.
package filter

import "strings"

// TypePrefixFilter accepts type names starting with one of its prefixes. An
// empty filter accepts everything.
type TypePrefixFilter struct {
	prefixes []string
}

// NewTypePrefixFilter creates a filter over prefixes, ignoring blank entries.
func NewTypePrefixFilter(prefixes []string) *TypePrefixFilter {
	return &TypePrefixFilter{prefixes: compact(prefixes)}
}

// Empty reports whether the filter accepts everything.
func (f *TypePrefixFilter) Empty() bool {
	return f == nil || len(f.prefixes) == 0
}

// Allow reports whether typeName passes the filter.
func (f *TypePrefixFilter) Allow(typeName string) bool {
	if f.Empty() {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(typeName, p) {
			return true
		}
	}
	return false
}

// CallstackFilter accepts a callstack when any frame's function name equals
// one of its entries. An empty filter accepts everything.
type CallstackFilter struct {
	names map[string]struct{}
}

// NewCallstackFilter creates a filter over exact function names.
func NewCallstackFilter(names []string) *CallstackFilter {
	f := &CallstackFilter{names: make(map[string]struct{})}
	for _, n := range compact(names) {
		f.names[n] = struct{}{}
	}
	return f
}

// Empty reports whether the filter accepts everything.
func (f *CallstackFilter) Empty() bool {
	return f == nil || len(f.names) == 0
}

// Allow reports whether any of functionNames is in the filter.
func (f *CallstackFilter) Allow(functionNames []string) bool {
	if f.Empty() {
		return true
	}
	for _, n := range functionNames {
		if _, ok := f.names[n]; ok {
			return true
		}
	}
	return false
}

// ParseList splits a comma separated flag value.
func ParseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return compact(strings.Split(s, ","))
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
