package pointcut

import (
	"fmt"

	"github.com/aop-weaver/internal/metadata"
	apperrors "github.com/aop-weaver/pkg/errors"
)

// staticOnly is embedded by filters that never defer to call time.
type staticOnly struct{}

func (staticOnly) HasRuntimeEvaluationsDefinition() bool { return false }

func (staticOnly) RuntimeEvaluationsDefinition() *RuntimeExpression { return nil }

// ClassNameFilter matches the fully qualified class name against a pattern.
type ClassNameFilter struct {
	staticOnly
	pattern *namePattern
}

// NewClassNameFilter compiles a class name pattern.
func NewClassNameFilter(pattern string) (*ClassNameFilter, error) {
	p, err := compileNamePattern(pattern, false)
	if err != nil {
		return nil, err
	}
	return &ClassNameFilter{pattern: p}, nil
}

func (f *ClassNameFilter) Matches(className, _, _ string, _ uint64) (bool, error) {
	return f.pattern.match(className), nil
}

func (f *ClassNameFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	return f.pattern.reduce(index)
}

func (f *ClassNameFilter) String() string {
	return "class(" + f.pattern.source + ")"
}

// ClassAnnotatedWithFilter matches classes carrying an annotation. Value
// constraints are checked against the first annotation instance only.
type ClassAnnotatedWithFilter struct {
	staticOnly
	reflection     ReflectionProvider
	annotationType string
	constraints    []Condition
}

// NewClassAnnotatedWithFilter creates the filter.
func NewClassAnnotatedWithFilter(reflection ReflectionProvider, annotationType string, constraints []Condition) *ClassAnnotatedWithFilter {
	return &ClassAnnotatedWithFilter{
		reflection:     reflection,
		annotationType: metadata.NormalizeName(annotationType),
		constraints:    constraints,
	}
}

func (f *ClassAnnotatedWithFilter) Matches(className, _, _ string, _ uint64) (bool, error) {
	annotations := f.reflection.ClassAnnotations(className, f.annotationType)
	if len(annotations) == 0 {
		return false, nil
	}
	return matchConstraints(f.constraints, annotations[0].Value)
}

func (f *ClassAnnotatedWithFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	return index.Intersect(NewClassNameIndex(f.reflection.ClassNamesByAnnotation(f.annotationType)...))
}

func (f *ClassAnnotatedWithFilter) String() string {
	return fmt.Sprintf("classAnnotatedWith(%s%s)", f.annotationType, formatConstraints(f.constraints))
}

// ClassTypeFilter matches classes implementing an interface, or equal to or
// extending a class.
type ClassTypeFilter struct {
	staticOnly
	reflection  ReflectionProvider
	typeName    string
	isInterface bool
}

// NewClassTypeFilter fails when typeName is neither a known interface nor a
// known class.
func NewClassTypeFilter(reflection ReflectionProvider, typeName string) (*ClassTypeFilter, error) {
	typeName = metadata.NormalizeName(typeName)
	if !reflection.HasClass(typeName) {
		return nil, apperrors.Newf(apperrors.CodeResolutionError,
			"%s is neither an interface nor a class", typeName)
	}
	return &ClassTypeFilter{
		reflection:  reflection,
		typeName:    typeName,
		isInterface: reflection.IsInterface(typeName),
	}, nil
}

func (f *ClassTypeFilter) Matches(className, _, _ string, _ uint64) (bool, error) {
	className = metadata.NormalizeName(className)
	if f.isInterface {
		return f.reflection.ImplementsInterface(className, f.typeName), nil
	}
	return className == f.typeName || f.reflection.IsSubclassOf(className, f.typeName), nil
}

func (f *ClassTypeFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	var names []string
	if f.isInterface {
		names = f.reflection.ImplementationsOf(f.typeName)
	} else {
		names = append([]string{f.typeName}, f.reflection.SubclassesOf(f.typeName)...)
	}
	return index.Intersect(NewClassNameIndex(names...))
}

func (f *ClassTypeFilter) String() string {
	return "within(" + f.typeName + ")"
}

func formatConstraints(conditions []Condition) string {
	if len(conditions) == 0 {
		return ""
	}
	out := "("
	for i, c := range conditions {
		if i > 0 {
			out += ", "
		}
		out += c.String()
	}
	return out + ")"
}
