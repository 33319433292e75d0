// Package metadata holds the precomputed class tables the weaver matches
// against: methods with their modifiers, annotations, and type hierarchy.
package metadata

import "strings"

// Kind distinguishes classes from interfaces.
type Kind string

const (
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
)

// Visibility values for methods and properties.
const (
	VisibilityPublic    = "public"
	VisibilityProtected = "protected"
	VisibilityPrivate   = "private"
)

// Annotation is one annotation instance with its property values.
type Annotation struct {
	Type   string                 `yaml:"type" json:"type"`
	Values map[string]interface{} `yaml:"values,omitempty" json:"values,omitempty"`
}

// Value returns a property value of the annotation.
func (a Annotation) Value(key string) (interface{}, bool) {
	v, ok := a.Values[key]
	return v, ok
}

// StringValue returns a property value as string, or "" if absent or not a string.
func (a Annotation) StringValue(key string) string {
	if s, ok := a.Values[key].(string); ok {
		return s
	}
	return ""
}

// Parameter describes one method parameter.
type Parameter struct {
	Name     string      `yaml:"name" json:"name"`
	Type     string      `yaml:"type,omitempty" json:"type,omitempty"`
	Optional bool        `yaml:"optional,omitempty" json:"optional,omitempty"`
	Default  interface{} `yaml:"default,omitempty" json:"default,omitempty"`
}

// MethodMetadata describes one declared method.
type MethodMetadata struct {
	Name        string       `yaml:"name" json:"name"`
	Visibility  string       `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	Final       bool         `yaml:"final,omitempty" json:"final,omitempty"`
	Static      bool         `yaml:"static,omitempty" json:"static,omitempty"`
	Abstract    bool         `yaml:"abstract,omitempty" json:"abstract,omitempty"`
	Constructor bool         `yaml:"constructor,omitempty" json:"constructor,omitempty"`
	Parameters  []Parameter  `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Annotations []Annotation `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Tags        []string     `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// IsPublic reports public visibility; an empty visibility counts as public.
func (m *MethodMetadata) IsPublic() bool {
	return m.Visibility == "" || m.Visibility == VisibilityPublic
}

// IsProtected reports protected visibility.
func (m *MethodMetadata) IsProtected() bool {
	return m.Visibility == VisibilityProtected
}

// HasParameter reports whether the method declares the named parameter.
func (m *MethodMetadata) HasParameter(name string) bool {
	for _, p := range m.Parameters {
		if p.Name == name {
			return true
		}
	}
	return false
}

// PropertyMetadata describes one declared property.
type PropertyMetadata struct {
	Name        string       `yaml:"name" json:"name"`
	Visibility  string       `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	Type        string       `yaml:"type,omitempty" json:"type,omitempty"`
	Annotations []Annotation `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// ClassMetadata describes a class or interface.
type ClassMetadata struct {
	Name        string             `yaml:"name" json:"name"`
	Kind        Kind               `yaml:"kind,omitempty" json:"kind,omitempty"`
	Final       bool               `yaml:"final,omitempty" json:"final,omitempty"`
	Abstract    bool               `yaml:"abstract,omitempty" json:"abstract,omitempty"`
	Parent      string             `yaml:"parent,omitempty" json:"parent,omitempty"`
	Interfaces  []string           `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Annotations []Annotation       `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Methods     []MethodMetadata   `yaml:"methods,omitempty" json:"methods,omitempty"`
	Properties  []PropertyMetadata `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// IsInterface reports whether the entry is an interface.
func (c *ClassMetadata) IsInterface() bool {
	return c.Kind == KindInterface
}

// HasAnnotation reports whether the class carries an annotation of the type.
func (c *ClassMetadata) HasAnnotation(annotationType string) bool {
	return len(filterAnnotations(c.Annotations, annotationType)) > 0
}

// MethodRef is a method as seen from a class, together with the class that
// declares it.
type MethodRef struct {
	Method         *MethodMetadata
	DeclaringClass string
}

// NormalizeName strips a leading namespace separator.
func NormalizeName(name string) string {
	return strings.TrimPrefix(name, `\`)
}

func filterAnnotations(annotations []Annotation, annotationType string) []Annotation {
	annotationType = NormalizeName(annotationType)
	var out []Annotation
	for _, a := range annotations {
		if NormalizeName(a.Type) == annotationType {
			out = append(out, a)
		}
	}
	return out
}
