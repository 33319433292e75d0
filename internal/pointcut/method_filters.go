package pointcut

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aop-weaver/internal/metadata"
	"github.com/aop-weaver/pkg/utils"
)

// MethodNameFilter matches method names, with an optional visibility and
// argument constraints. Argument constraints are decided at call time.
type MethodNameFilter struct {
	reflection  ReflectionProvider
	pattern     *namePattern
	visibility  string
	constraints []Condition
	logger      utils.Logger
}

// NewMethodNameFilter compiles a method name pattern. visibility is empty,
// "public" or "protected".
func NewMethodNameFilter(reflection ReflectionProvider, pattern, visibility string, constraints []Condition, logger utils.Logger) (*MethodNameFilter, error) {
	p, err := compileNamePattern(pattern, false)
	if err != nil {
		return nil, err
	}
	return &MethodNameFilter{
		reflection:  reflection,
		pattern:     p,
		visibility:  visibility,
		constraints: constraints,
		logger:      utils.OrNull(logger),
	}, nil
}

func (f *MethodNameFilter) Matches(className, methodName, declaringClassName string, _ uint64) (bool, error) {
	if methodName == "" {
		return true, nil
	}
	if !f.pattern.match(methodName) {
		return false, nil
	}
	if f.visibility == "" && len(f.constraints) == 0 {
		return true, nil
	}

	owner := declaringClassName
	if owner == "" {
		owner = className
	}
	ref, ok := f.reflection.Method(owner, methodName)
	if !ok {
		return false, nil
	}
	switch f.visibility {
	case metadata.VisibilityPublic:
		if !ref.Method.IsPublic() {
			return false, nil
		}
	case metadata.VisibilityProtected:
		if !ref.Method.IsProtected() {
			return false, nil
		}
	}

	for _, c := range f.constraints {
		argument, _, _ := strings.Cut(c.Left, ".")
		if !ref.Method.HasParameter(argument) {
			f.logger.Debug("method %s::%s() has no argument %q referenced in pointcut %s",
				owner, methodName, argument, f)
			return false, nil
		}
	}
	return true, nil
}

func (f *MethodNameFilter) HasRuntimeEvaluationsDefinition() bool {
	return len(f.constraints) > 0
}

func (f *MethodNameFilter) RuntimeEvaluationsDefinition() *RuntimeExpression {
	if len(f.constraints) == 0 {
		return nil
	}
	return &RuntimeExpression{ArgumentConditions: f.constraints}
}

func (f *MethodNameFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	return index
}

func (f *MethodNameFilter) String() string {
	prefix := ""
	if f.visibility != "" {
		prefix = f.visibility + " "
	}
	return fmt.Sprintf("methodName(%s%s%s)", prefix, f.pattern.source, formatConstraints(f.constraints))
}

// MethodAnnotatedWithFilter matches methods carrying an annotation, looked up
// on the declaring class.
type MethodAnnotatedWithFilter struct {
	staticOnly
	reflection     ReflectionProvider
	annotationType string
	constraints    []Condition

	classesOnce sync.Once
	classes     *ClassNameIndex
}

// NewMethodAnnotatedWithFilter creates the filter.
func NewMethodAnnotatedWithFilter(reflection ReflectionProvider, annotationType string, constraints []Condition) *MethodAnnotatedWithFilter {
	return &MethodAnnotatedWithFilter{
		reflection:     reflection,
		annotationType: metadata.NormalizeName(annotationType),
		constraints:    constraints,
	}
}

func (f *MethodAnnotatedWithFilter) Matches(className, methodName, declaringClassName string, _ uint64) (bool, error) {
	if methodName == "" {
		return f.annotatedClasses().HasName(metadata.NormalizeName(className)), nil
	}
	owner := declaringClassName
	if owner == "" {
		owner = className
	}
	annotations := f.reflection.MethodAnnotations(owner, methodName, f.annotationType)
	if len(annotations) == 0 {
		return false, nil
	}
	return matchConstraints(f.constraints, annotations[0].Value)
}

func (f *MethodAnnotatedWithFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	return index.Intersect(f.annotatedClasses())
}

// annotatedClasses is built on first use; class metadata does not change
// once weaving starts.
func (f *MethodAnnotatedWithFilter) annotatedClasses() *ClassNameIndex {
	f.classesOnce.Do(func() {
		f.classes = NewClassNameIndex(f.reflection.ClassNamesWithMethodsAnnotatedWith(f.annotationType)...)
	})
	return f.classes
}

func (f *MethodAnnotatedWithFilter) String() string {
	return fmt.Sprintf("methodAnnotatedWith(%s%s)", f.annotationType, formatConstraints(f.constraints))
}

// MethodTaggedWithFilter matches methods by tag. Tags are compared case
// insensitively.
type MethodTaggedWithFilter struct {
	staticOnly
	reflection ReflectionProvider
	pattern    *namePattern
}

// NewMethodTaggedWithFilter compiles the tag pattern.
func NewMethodTaggedWithFilter(reflection ReflectionProvider, tag string) (*MethodTaggedWithFilter, error) {
	p, err := compileNamePattern(tag, true)
	if err != nil {
		return nil, err
	}
	return &MethodTaggedWithFilter{reflection: reflection, pattern: p}, nil
}

func (f *MethodTaggedWithFilter) Matches(className, methodName, declaringClassName string, _ uint64) (bool, error) {
	if methodName == "" {
		return true, nil
	}
	owner := declaringClassName
	if owner == "" {
		owner = className
	}
	ref, ok := f.reflection.Method(owner, methodName)
	if !ok {
		return false, nil
	}
	for _, tag := range ref.Method.Tags {
		if f.pattern.regex.MatchString(tag) {
			return true, nil
		}
	}
	return false, nil
}

func (f *MethodTaggedWithFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	return index
}

func (f *MethodTaggedWithFilter) String() string {
	return "methodTaggedWith(" + f.pattern.source + ")"
}
