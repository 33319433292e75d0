package pointcut

import (
	"sort"
	"strings"
)

// ClassNameIndex is an immutable set of class names. Set operations return
// new indices and never modify their operands.
type ClassNameIndex struct {
	names  map[string]struct{}
	sorted []string
}

// NewClassNameIndex creates an index holding the given names.
func NewClassNameIndex(names ...string) *ClassNameIndex {
	idx := &ClassNameIndex{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		idx.names[n] = struct{}{}
	}
	idx.sorted = make([]string, 0, len(idx.names))
	for n := range idx.names {
		idx.sorted = append(idx.sorted, n)
	}
	sort.Strings(idx.sorted)
	return idx
}

// HasName reports whether the name is in the index.
func (idx *ClassNameIndex) HasName(name string) bool {
	_, ok := idx.names[name]
	return ok
}

// Len returns the number of names.
func (idx *ClassNameIndex) Len() int {
	return len(idx.sorted)
}

// Names returns the names in ascending order. The slice must not be modified.
func (idx *ClassNameIndex) Names() []string {
	return idx.sorted
}

// Intersect returns the names present in both indices.
func (idx *ClassNameIndex) Intersect(other *ClassNameIndex) *ClassNameIndex {
	small, large := idx, other
	if large.Len() < small.Len() {
		small, large = large, small
	}
	out := make([]string, 0, small.Len())
	for _, n := range small.sorted {
		if large.HasName(n) {
			out = append(out, n)
		}
	}
	return NewClassNameIndex(out...)
}

// Union returns the names present in either index.
func (idx *ClassNameIndex) Union(other *ClassNameIndex) *ClassNameIndex {
	out := make([]string, 0, idx.Len()+other.Len())
	out = append(out, idx.sorted...)
	out = append(out, other.sorted...)
	return NewClassNameIndex(out...)
}

// FilterByPrefix returns the names starting with prefix.
func (idx *ClassNameIndex) FilterByPrefix(prefix string) *ClassNameIndex {
	if prefix == "" {
		return idx
	}
	start := sort.SearchStrings(idx.sorted, prefix)
	end := start
	for end < len(idx.sorted) && strings.HasPrefix(idx.sorted[end], prefix) {
		end++
	}
	return NewClassNameIndex(idx.sorted[start:end]...)
}
