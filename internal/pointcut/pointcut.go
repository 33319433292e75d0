package pointcut

import (
	"sync"
	"sync/atomic"

	apperrors "github.com/aop-weaver/pkg/errors"
)

// MaxRecursionLevel is how often a pointcut may be re-entered with the same
// query id before it is reported as circular.
const MaxRecursionLevel = 99

type recursionGuard struct {
	queryID uint64
	level   int
}

// Pointcut is a named, reusable filter declared by an aspect.
//
// Matching tracks re-entries per query id to detect pointcuts that reference
// themselves. Guards are kept per query namespace so workers weaving in
// parallel do not reset each other.
type Pointcut struct {
	expression         string
	filter             *Composite
	aspectClassName    string
	pointcutMethodName string

	mu       sync.Mutex
	guards   map[uint32]*recursionGuard
	reducing atomic.Bool
}

// NewPointcut wraps a parsed composite. pointcutMethodName is empty for
// pointcuts declared inline on an advice.
func NewPointcut(expression string, filter *Composite, aspectClassName, pointcutMethodName string) *Pointcut {
	return &Pointcut{
		expression:         expression,
		filter:             filter,
		aspectClassName:    aspectClassName,
		pointcutMethodName: pointcutMethodName,
		guards:             make(map[uint32]*recursionGuard),
	}
}

func (p *Pointcut) Expression() string         { return p.expression }
func (p *Pointcut) Filter() *Composite         { return p.filter }
func (p *Pointcut) AspectClassName() string    { return p.aspectClassName }
func (p *Pointcut) PointcutMethodName() string { return p.pointcutMethodName }

// enter records one match call for queryID.
func (p *Pointcut) enter(queryID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ns := QueryNamespace(queryID)
	g, ok := p.guards[ns]
	if !ok || g.queryID != queryID {
		p.guards[ns] = &recursionGuard{queryID: queryID}
		return nil
	}
	g.level++
	if g.level > MaxRecursionLevel {
		return apperrors.Wrap(apperrors.CodeCircularReference, "circular pointcut reference", &apperrors.CircularReferenceError{
			AspectClassName:    p.aspectClassName,
			PointcutMethodName: p.pointcutMethodName,
			Level:              g.level,
		})
	}
	return nil
}

func (p *Pointcut) Matches(className, methodName, declaringClassName string, queryID uint64) (bool, error) {
	matches, _, err := p.MatchesWithRuntime(className, methodName, declaringClassName, queryID)
	return matches, err
}

func (p *Pointcut) MatchesWithRuntime(className, methodName, declaringClassName string, queryID uint64) (bool, *RuntimeExpression, error) {
	if err := p.enter(queryID); err != nil {
		return false, nil, err
	}
	return p.filter.MatchesWithRuntime(className, methodName, declaringClassName, queryID)
}

func (p *Pointcut) HasRuntimeEvaluationsDefinition() bool {
	return p.filter.HasRuntimeEvaluationsDefinition()
}

func (p *Pointcut) RuntimeEvaluationsDefinition() *RuntimeExpression {
	return p.filter.RuntimeEvaluationsDefinition()
}

// ReduceTargetClassNames returns index unchanged when called re-entrantly,
// which happens for self-referencing pointcuts.
func (p *Pointcut) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	if !p.reducing.CompareAndSwap(false, true) {
		return index
	}
	defer p.reducing.Store(false)
	return p.filter.ReduceTargetClassNames(index)
}

func (p *Pointcut) String() string {
	if p.pointcutMethodName != "" {
		return p.aspectClassName + "->" + p.pointcutMethodName
	}
	return p.expression
}
