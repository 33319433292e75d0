package metadata

import (
	"sort"

	apperrors "github.com/aop-weaver/pkg/errors"
)

// Registry answers reflection queries over a fixed set of classes.
// It is immutable after construction and safe for concurrent reads.
type Registry struct {
	classes map[string]*ClassMetadata
	names   []string

	// derived lookups, built once by index()
	methods       map[string][]MethodRef
	ancestors     map[string]map[string]bool // class -> every parent class
	interfaces    map[string]map[string]bool // class -> every implemented/extended interface
	byAnnotation  map[string][]string
	byMethodAnnot map[string][]string
	implementers  map[string][]string
	subclasses    map[string][]string
}

// NewRegistry builds a registry; duplicate names are rejected.
func NewRegistry(classes ...*ClassMetadata) (*Registry, error) {
	r := &Registry{classes: make(map[string]*ClassMetadata, len(classes))}
	for _, c := range classes {
		if c == nil {
			continue
		}
		c.Name = NormalizeName(c.Name)
		if c.Name == "" {
			return nil, apperrors.New(apperrors.CodeConfigError, "class metadata without a name")
		}
		if _, exists := r.classes[c.Name]; exists {
			return nil, apperrors.Newf(apperrors.CodeConfigError, "class %s is declared twice", c.Name)
		}
		if c.Kind == "" {
			c.Kind = KindClass
		}
		c.Parent = NormalizeName(c.Parent)
		for i, iface := range c.Interfaces {
			c.Interfaces[i] = NormalizeName(iface)
		}
		r.classes[c.Name] = c
		r.names = append(r.names, c.Name)
	}
	sort.Strings(r.names)
	r.index()
	return r, nil
}

func (r *Registry) index() {
	r.methods = make(map[string][]MethodRef, len(r.names))
	r.ancestors = make(map[string]map[string]bool, len(r.names))
	r.interfaces = make(map[string]map[string]bool, len(r.names))
	r.byAnnotation = make(map[string][]string)
	r.byMethodAnnot = make(map[string][]string)
	r.implementers = make(map[string][]string)
	r.subclasses = make(map[string][]string)

	for _, name := range r.names {
		c := r.classes[name]
		r.ancestors[name] = r.collectAncestors(name)
		r.interfaces[name] = r.collectInterfaces(name, map[string]bool{})
		r.methods[name] = r.collectMethods(name)

		seen := map[string]bool{}
		for _, a := range c.Annotations {
			t := NormalizeName(a.Type)
			if !seen[t] {
				seen[t] = true
				r.byAnnotation[t] = append(r.byAnnotation[t], name)
			}
		}

		seen = map[string]bool{}
		for _, ref := range r.methods[name] {
			for _, a := range ref.Method.Annotations {
				t := NormalizeName(a.Type)
				if !seen[t] {
					seen[t] = true
					r.byMethodAnnot[t] = append(r.byMethodAnnot[t], name)
				}
			}
		}

		if !c.IsInterface() {
			for iface := range r.interfaces[name] {
				r.implementers[iface] = append(r.implementers[iface], name)
			}
			for parent := range r.ancestors[name] {
				r.subclasses[parent] = append(r.subclasses[parent], name)
			}
		}
	}

	for _, m := range []map[string][]string{r.implementers, r.subclasses} {
		for k := range m {
			sort.Strings(m[k])
		}
	}
}

func (r *Registry) collectAncestors(name string) map[string]bool {
	out := map[string]bool{}
	c := r.classes[name]
	for c != nil && c.Parent != "" && !out[c.Parent] && c.Parent != name {
		out[c.Parent] = true
		c = r.classes[c.Parent]
	}
	return out
}

func (r *Registry) collectInterfaces(name string, visiting map[string]bool) map[string]bool {
	out := map[string]bool{}
	c := r.classes[name]
	if c == nil || visiting[name] {
		return out
	}
	visiting[name] = true

	for _, iface := range c.Interfaces {
		out[iface] = true
		for inherited := range r.collectInterfaces(iface, visiting) {
			out[inherited] = true
		}
	}
	if c.Parent != "" {
		for inherited := range r.collectInterfaces(c.Parent, visiting) {
			out[inherited] = true
		}
	}
	return out
}

// collectMethods lists own methods first, then inherited ones that are not
// overridden, walking the parent chain (classes) or extended interfaces.
func (r *Registry) collectMethods(name string) []MethodRef {
	var refs []MethodRef
	seen := map[string]bool{}
	visited := map[string]bool{}

	var walk func(className string)
	walk = func(className string) {
		c := r.classes[className]
		if c == nil || visited[className] {
			return
		}
		visited[className] = true
		for i := range c.Methods {
			m := &c.Methods[i]
			if seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			refs = append(refs, MethodRef{Method: m, DeclaringClass: className})
		}
		if c.IsInterface() {
			for _, iface := range c.Interfaces {
				walk(iface)
			}
			return
		}
		if c.Parent != "" {
			walk(c.Parent)
		}
	}
	walk(name)
	return refs
}

// HasClass reports whether a class or interface of that name is known.
func (r *Registry) HasClass(name string) bool {
	_, ok := r.classes[NormalizeName(name)]
	return ok
}

// IsInterface reports whether name is a known interface.
func (r *Registry) IsInterface(name string) bool {
	c := r.classes[NormalizeName(name)]
	return c != nil && c.IsInterface()
}

// Class returns the metadata of a class.
func (r *Registry) Class(name string) (*ClassMetadata, bool) {
	c, ok := r.classes[NormalizeName(name)]
	return c, ok
}

// ClassNames returns every known class and interface name, sorted.
func (r *Registry) ClassNames() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Methods returns own and inherited methods of a class.
func (r *Registry) Methods(className string) []MethodRef {
	return r.methods[NormalizeName(className)]
}

// Method looks a method up on a class, including inherited methods.
func (r *Registry) Method(className, methodName string) (MethodRef, bool) {
	for _, ref := range r.methods[NormalizeName(className)] {
		if ref.Method.Name == methodName {
			return ref, true
		}
	}
	return MethodRef{}, false
}

// ClassAnnotations returns the annotations of the given type on a class, in
// declaration order.
func (r *Registry) ClassAnnotations(className, annotationType string) []Annotation {
	c := r.classes[NormalizeName(className)]
	if c == nil {
		return nil
	}
	return filterAnnotations(c.Annotations, annotationType)
}

// MethodAnnotations returns the annotations of the given type on a method.
// An empty annotationType returns all of them.
func (r *Registry) MethodAnnotations(className, methodName, annotationType string) []Annotation {
	ref, ok := r.Method(className, methodName)
	if !ok {
		return nil
	}
	if annotationType == "" {
		return ref.Method.Annotations
	}
	return filterAnnotations(ref.Method.Annotations, annotationType)
}

// PropertyAnnotations returns the annotations of the given type on a property.
func (r *Registry) PropertyAnnotations(className, propertyName, annotationType string) []Annotation {
	c := r.classes[NormalizeName(className)]
	if c == nil {
		return nil
	}
	for _, p := range c.Properties {
		if p.Name == propertyName {
			return filterAnnotations(p.Annotations, annotationType)
		}
	}
	return nil
}

// ImplementsInterface reports whether the class implements the interface,
// directly, through its parents or through interface inheritance.
func (r *Registry) ImplementsInterface(className, interfaceName string) bool {
	return r.interfaces[NormalizeName(className)][NormalizeName(interfaceName)]
}

// IsSubclassOf reports whether parentName is a (transitive) parent of className.
func (r *Registry) IsSubclassOf(className, parentName string) bool {
	return r.ancestors[NormalizeName(className)][NormalizeName(parentName)]
}

// ClassNamesByAnnotation returns the classes carrying the annotation.
func (r *Registry) ClassNamesByAnnotation(annotationType string) []string {
	return r.byAnnotation[NormalizeName(annotationType)]
}

// ClassNamesWithMethodsAnnotatedWith returns the classes having at least one
// own or inherited method carrying the annotation.
func (r *Registry) ClassNamesWithMethodsAnnotatedWith(annotationType string) []string {
	return r.byMethodAnnot[NormalizeName(annotationType)]
}

// ImplementationsOf returns the non-interface classes implementing the interface.
func (r *Registry) ImplementationsOf(interfaceName string) []string {
	return r.implementers[NormalizeName(interfaceName)]
}

// SubclassesOf returns the classes extending the class, transitively.
func (r *Registry) SubclassesOf(className string) []string {
	return r.subclasses[NormalizeName(className)]
}
