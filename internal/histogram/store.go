package histogram

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// Entry is one callstack and the tree accumulated for it.
type Entry struct {
	CallStack metadata.CallStack
	Tree      *typetree.TypeTree
}

// TypeSummary aggregates the entries sharing a root type.
type TypeSummary struct {
	TypeName      string `json:"type_name"`
	ContainerName string `json:"container_name,omitempty"`
	Callstacks    int    `json:"callstacks"`
	TotalAccesses uint64 `json:"total_accesses"`
	SizeBytes     int64  `json:"size_bytes"`
}

// Store maps callstacks to their type trees. Inserting a tree for a known
// callstack merges the counters of the stored tree into the new one.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	duplicates uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// Insert stores tree under callstack. A second tree for the same callstack
// must have the same root name and shape.
func (s *Store) Insert(callstack metadata.CallStack, tree *typetree.TypeTree) error {
	if tree.Empty() {
		return errors.InvalidArgumentf("type tree is null")
	}
	key := callstack.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[key]; ok {
		if cur.Tree.Name() != tree.Name() {
			return errors.InvalidArgumentf("trying to insert different type trees for the same callstack: %s vs %s",
				cur.Tree.Name(), tree.Name())
		}
		if err := tree.MergeCounts(cur.Tree); err != nil {
			return err
		}
		s.duplicates++
	}
	s.entries[key] = &Entry{CallStack: callstack, Tree: tree}
	return nil
}

// Get returns the tree stored for callstack.
func (s *Store) Get(callstack metadata.CallStack) (*typetree.TypeTree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[callstack.Key()]; ok {
		return e.Tree, nil
	}
	return nil, errors.NotFoundf("type tree not found for callstack %s", callstack.Key())
}

// CallStacksForType returns the callstacks whose tree has the given root
// name, in entry order.
func (s *Store) CallStacksForType(rootTypeName string) []metadata.CallStack {
	var out []metadata.CallStack
	for _, e := range s.Entries() {
		if e.Tree.Name() == rootTypeName {
			out = append(out, e.CallStack)
		}
	}
	return out
}

// Len returns the number of distinct callstacks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Duplicates returns how many inserts merged into an existing entry.
func (s *Store) Duplicates() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duplicates
}

// Entries returns the entries ordered by callstack key.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = *s.entries[k]
	}
	s.mu.RUnlock()
	return out
}

// TypeSummaries aggregates entries by root type, most accessed first.
func (s *Store) TypeSummaries() []TypeSummary {
	byName := make(map[string]*TypeSummary)
	for _, e := range s.Entries() {
		sum, ok := byName[e.Tree.Name()]
		if !ok {
			sum = &TypeSummary{TypeName: e.Tree.Name(), SizeBytes: e.Tree.Root().FullSizeBytes()}
			if e.Tree.FromContainer() {
				sum.ContainerName = e.Tree.ContainerName()
			}
			byName[e.Tree.Name()] = sum
		}
		sum.Callstacks++
		sum.TotalAccesses += e.Tree.TotalAccessCount()
	}

	out := make([]TypeSummary, 0, len(byName))
	for _, sum := range byName {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalAccesses != out[j].TotalAccesses {
			return out[i].TotalAccesses > out[j].TotalAccesses
		}
		return out[i].TypeName < out[j].TypeName
	})
	return out
}

func limitOf(limit, n int) int {
	if limit < 0 || limit > n {
		return n
	}
	return limit
}

// Dump writes up to limit entries, all when limit is negative.
func (s *Store) Dump(w io.Writer, limit int) error {
	entries := s.Entries()
	for _, e := range entries[:limitOf(limit, len(entries))] {
		if _, err := io.WriteString(w, "- Entry: \n    type_tree: \n"); err != nil {
			return err
		}
		if err := e.Tree.Dump(w, 3); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "    callstack: \n"); err != nil {
			return err
		}
		if err := DumpCallStack(w, e.CallStack, 3, false); err != nil {
			return err
		}
	}
	return nil
}

// DumpFlamegraph writes the collapsed stacks of up to limit entries, all
// when limit is negative. Entry i is tagged with id i+1.
func (s *Store) DumpFlamegraph(w io.Writer, limit int) error {
	entries := s.Entries()
	for i, e := range entries[:limitOf(limit, len(entries))] {
		if err := e.Tree.DumpFlameGraph(w, uint64(i+1)); err != nil {
			return err
		}
	}
	return nil
}

// DumpCallStack writes the frames of callstack as a YAML-like list indented
// by level. asEntry wraps the list in an "entry" item.
func DumpCallStack(w io.Writer, callstack metadata.CallStack, level int, asEntry bool) error {
	var sb strings.Builder
	if asEntry {
		sb.WriteString(strings.Repeat("  ", level))
		sb.WriteString("- entry: \n")
		level += 2
	}
	indent := strings.Repeat("  ", level)
	for _, f := range callstack {
		fmt.Fprintf(&sb, "%s- function_name: %s\n", indent, f.FunctionName)
		fmt.Fprintf(&sb, "%s  line_offset: %d\n", indent, f.LineOffset)
		fmt.Fprintf(&sb, "%s  column: %d\n", indent, f.Column)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
