// Package filter classifies class names by namespace so infrastructure
// classes are never offered to the weaver.
package filter

import (
	"strings"
	"sync"
)

// ClassCategory represents the category of a class.
type ClassCategory int

const (
	// CategoryUnknown indicates an empty or unusable class name.
	CategoryUnknown ClassCategory = iota
	// CategoryInfrastructure is framework code the weaver itself depends on.
	CategoryInfrastructure
	// CategoryExcluded is a namespace excluded through configuration.
	CategoryExcluded
	// CategoryApplication is everything else; only these are advisable.
	CategoryApplication
)

// String returns the string representation of the category.
func (c ClassCategory) String() string {
	switch c {
	case CategoryInfrastructure:
		return "infrastructure"
	case CategoryExcluded:
		return "excluded"
	case CategoryApplication:
		return "application"
	default:
		return "unknown"
	}
}

// NamespaceSeparator separates namespace segments in class names.
const NamespaceSeparator = `\`

// DefaultInfrastructureNamespaces are never advisable: proxying them would
// intercept the machinery that builds and runs the proxies.
var DefaultInfrastructureNamespaces = []string{
	`Weaver\Aop`,
	`Weaver\Cache`,
	`Weaver\Configuration`,
	`Weaver\Core`,
	`Weaver\Log`,
	`Weaver\ObjectManagement`,
	`Weaver\Package`,
	`Weaver\Reflection`,
	`Weaver\Persistence\Mapping`,
}

// NamespaceFilter classifies class names by namespace prefix.
// It is safe for concurrent use.
type NamespaceFilter struct {
	mu sync.RWMutex

	infrastructure []string
	excluded       []string

	categoryCache     map[string]ClassCategory
	categoryCacheSize int
}

// NewNamespaceFilter creates a filter with the default infrastructure
// namespaces plus the given excluded namespaces.
func NewNamespaceFilter(excluded ...string) *NamespaceFilter {
	f := &NamespaceFilter{
		categoryCache:     make(map[string]ClassCategory),
		categoryCacheSize: 10000,
	}
	for _, ns := range DefaultInfrastructureNamespaces {
		f.infrastructure = append(f.infrastructure, normalizeNamespace(ns))
	}
	f.AddExcludedNamespaces(excluded)
	return f
}

// normalizeNamespace makes a namespace match only whole segments.
func normalizeNamespace(ns string) string {
	ns = strings.Trim(ns, NamespaceSeparator)
	return ns + NamespaceSeparator
}

// Classify returns the category of a class.
func (f *NamespaceFilter) Classify(className string) ClassCategory {
	className = strings.TrimPrefix(className, NamespaceSeparator)
	if className == "" {
		return CategoryUnknown
	}

	f.mu.RLock()
	if cat, ok := f.categoryCache[className]; ok {
		f.mu.RUnlock()
		return cat
	}
	cat := f.classifyUncached(className)
	f.mu.RUnlock()

	f.mu.Lock()
	if len(f.categoryCache) < f.categoryCacheSize {
		f.categoryCache[className] = cat
	}
	f.mu.Unlock()

	return cat
}

// classifyUncached must be called with at least a read lock held.
func (f *NamespaceFilter) classifyUncached(className string) ClassCategory {
	for _, prefix := range f.infrastructure {
		if strings.HasPrefix(className, prefix) {
			return CategoryInfrastructure
		}
	}
	for _, prefix := range f.excluded {
		if strings.HasPrefix(className, prefix) {
			return CategoryExcluded
		}
	}
	return CategoryApplication
}

// IsAdvisable returns true if the class may be woven.
func (f *NamespaceFilter) IsAdvisable(className string) bool {
	return f.Classify(className) == CategoryApplication
}

// AddExcludedNamespaces adds configured namespaces and clears the cache.
func (f *NamespaceFilter) AddExcludedNamespaces(namespaces []string) {
	if len(namespaces) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ns := range namespaces {
		prefix := normalizeNamespace(ns)
		if prefix == NamespaceSeparator || containsString(f.excluded, prefix) {
			continue
		}
		f.excluded = append(f.excluded, prefix)
	}
	f.categoryCache = make(map[string]ClassCategory)
}

// ExcludedNamespaces returns the configured excluded namespaces.
func (f *NamespaceFilter) ExcludedNamespaces() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]string, len(f.excluded))
	for i, prefix := range f.excluded {
		result[i] = strings.TrimSuffix(prefix, NamespaceSeparator)
	}
	return result
}

// CacheStats returns cache statistics.
func (f *NamespaceFilter) CacheStats() (size int, maxSize int) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.categoryCache), f.categoryCacheSize
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// DefaultFilter is the default global filter instance.
var DefaultFilter = NewNamespaceFilter()

// IsAdvisable checks a class against the default filter.
func IsAdvisable(className string) bool {
	return DefaultFilter.IsAdvisable(className)
}
