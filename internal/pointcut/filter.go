// Package pointcut parses pointcut expressions into filter trees and matches
// them against class metadata.
package pointcut

import (
	"fmt"
	"sync/atomic"

	"github.com/aop-weaver/internal/metadata"
)

// Filter is a predicate over classes and methods.
//
// methodName and declaringClassName are empty when the filter is evaluated at
// class granularity (introductions); method-level filters then return a
// class-level verdict.
type Filter interface {
	Matches(className, methodName, declaringClassName string, queryID uint64) (bool, error)
	HasRuntimeEvaluationsDefinition() bool
	RuntimeEvaluationsDefinition() *RuntimeExpression
	// ReduceTargetClassNames returns a subset of index that still contains
	// every class the filter may match.
	ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex
}

// RuntimeMatcher is implemented by filters whose runtime conditions depend on
// the outcome of the static match, such as composites and pointcuts.
type RuntimeMatcher interface {
	// MatchesWithRuntime returns the static verdict and, when part of the
	// decision must be deferred to call time, the runtime expression.
	MatchesWithRuntime(className, methodName, declaringClassName string, queryID uint64) (bool, *RuntimeExpression, error)
}

// ReflectionProvider is the metadata the filters consult.
// *metadata.Registry implements it.
type ReflectionProvider interface {
	HasClass(name string) bool
	IsInterface(name string) bool
	Method(className, methodName string) (metadata.MethodRef, bool)
	ClassAnnotations(className, annotationType string) []metadata.Annotation
	MethodAnnotations(className, methodName, annotationType string) []metadata.Annotation
	ImplementsInterface(className, interfaceName string) bool
	IsSubclassOf(className, parentName string) bool
	ClassNamesByAnnotation(annotationType string) []string
	ClassNamesWithMethodsAnnotatedWith(annotationType string) []string
	ImplementationsOf(interfaceName string) []string
	SubclassesOf(className string) []string
}

// Operator joins a term to the running result of a composite.
type Operator string

const (
	OpAnd    Operator = "&&"
	OpOr     Operator = "||"
	OpAndNot Operator = "&&!"
	OpOrNot  Operator = "||!"
)

// Negated reports whether the term's value is inverted before combining.
func (o Operator) Negated() bool {
	return o == OpAndNot || o == OpOrNot
}

// IsOr reports whether the term is combined with OR.
func (o Operator) IsOr() bool {
	return o == OpOr || o == OpOrNot
}

// Negate returns the operator with the negation flipped.
func (o Operator) Negate() Operator {
	switch o {
	case OpAnd:
		return OpAndNot
	case OpAndNot:
		return OpAnd
	case OpOr:
		return OpOrNot
	default:
		return OpOr
	}
}

// matchTerm evaluates one filter, collecting its runtime expression.
func matchTerm(f Filter, className, methodName, declaringClassName string, queryID uint64) (bool, *RuntimeExpression, error) {
	if rm, ok := f.(RuntimeMatcher); ok {
		return rm.MatchesWithRuntime(className, methodName, declaringClassName, queryID)
	}
	matches, err := f.Matches(className, methodName, declaringClassName, queryID)
	if err != nil || !matches {
		return matches, nil, err
	}
	if f.HasRuntimeEvaluationsDefinition() {
		return true, f.RuntimeEvaluationsDefinition(), nil
	}
	return true, nil, nil
}

// QueryIDs hands out query identifiers within one namespace. Each weaving
// worker owns a namespace so recursion guards never see another worker's ids.
type QueryIDs struct {
	namespace uint64
	counter   atomic.Uint64
}

// NewQueryIDs creates a generator for the namespace.
func NewQueryIDs(namespace uint32) *QueryIDs {
	return &QueryIDs{namespace: uint64(namespace) << 32}
}

// Next returns a fresh query id.
func (q *QueryIDs) Next() uint64 {
	return q.namespace | (q.counter.Add(1) & 0xffffffff)
}

// QueryNamespace extracts the namespace of a query id.
func QueryNamespace(queryID uint64) uint32 {
	return uint32(queryID >> 32)
}

// Describe renders a filter for diagnostics.
func Describe(f Filter) string {
	if s, ok := f.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", f)
}
