// Package aspect models aspects: advice bound to pointcuts, named pointcuts
// and introductions, built from class metadata annotations.
package aspect

import (
	"fmt"

	"github.com/aop-weaver/internal/pointcut"
)

// AdviceKind is one of the five advice types.
type AdviceKind string

const (
	KindBefore         AdviceKind = "Before"
	KindAround         AdviceKind = "Around"
	KindAfterReturning AdviceKind = "AfterReturning"
	KindAfterThrowing  AdviceKind = "AfterThrowing"
	KindAfter          AdviceKind = "After"
)

// AdviceKinds lists the kinds in dispatch order.
var AdviceKinds = []AdviceKind{KindBefore, KindAround, KindAfterReturning, KindAfterThrowing, KindAfter}

// Annotation types recognized on aspect classes.
const (
	AnnotationAspect    = "aop.Aspect"
	AnnotationPointcut  = "aop.Pointcut"
	AnnotationIntroduce = "aop.Introduce"
)

// AnnotationType returns the method annotation declaring advice of this kind.
func (k AdviceKind) AnnotationType() string {
	return "aop." + string(k)
}

// KindForAnnotation maps an annotation type to an advice kind.
func KindForAnnotation(annotationType string) (AdviceKind, bool) {
	for _, k := range AdviceKinds {
		if k.AnnotationType() == annotationType {
			return k, true
		}
	}
	return "", false
}

// Advice names the aspect method implementing an advice.
type Advice struct {
	Kind            AdviceKind `json:"kind" yaml:"kind"`
	AspectClassName string     `json:"aspect" yaml:"aspect"`
	MethodName      string     `json:"method" yaml:"method"`
}

func (a Advice) String() string {
	return fmt.Sprintf("%s::%s", a.AspectClassName, a.MethodName)
}

// Advisor applies an advice where its pointcut matches.
type Advisor struct {
	Advice   Advice
	Pointcut *pointcut.Pointcut
}

// Introduction adds an interface or a property to the classes its pointcut
// matches.
type Introduction struct {
	AspectClassName string
	// Name is the interface name or the property name.
	Name     string
	Pointcut *pointcut.Pointcut
}

// SourceHint renders the declaration site used in error messages.
func SourceHint(aspectClassName, methodName, what string) string {
	if methodName == "" {
		return fmt.Sprintf("%s (%s)", aspectClassName, what)
	}
	return fmt.Sprintf("%s::%s (%s)", aspectClassName, methodName, what)
}
