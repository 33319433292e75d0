package pointcut

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aop-weaver/internal/metadata"
)

func newTestRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	r, err := metadata.NewRegistry(
		&metadata.ClassMetadata{
			Name: `App\Contract\Repository`,
			Kind: metadata.KindInterface,
			Methods: []metadata.MethodMetadata{
				{Name: "findAll"},
			},
		},
		&metadata.ClassMetadata{
			Name:        `App\Service\UserService`,
			Annotations: []metadata.Annotation{{Type: `App\Entity`, Values: map[string]interface{}{"table": "users", "shards": 4}}},
			Methods: []metadata.MethodMetadata{
				{Name: "save", Parameters: []metadata.Parameter{{Name: "user"}}, Tags: []string{"Transactional"}},
				{Name: "delete", Visibility: metadata.VisibilityProtected, Parameters: []metadata.Parameter{{Name: "id"}}},
				{Name: "find", Parameters: []metadata.Parameter{{Name: "id"}}, Annotations: []metadata.Annotation{{Type: `App\Log`}}},
				{Name: "lock", Final: true},
				{Name: "create", Static: true},
			},
		},
		&metadata.ClassMetadata{
			Name:       `App\Service\OrderService`,
			Interfaces: []string{`App\Contract\Repository`},
			Methods: []metadata.MethodMetadata{
				{Name: "place", Parameters: []metadata.Parameter{{Name: "order"}}},
				{Name: "findAll"},
			},
		},
		&metadata.ClassMetadata{
			Name:   `App\Service\SpecialOrderService`,
			Parent: `App\Service\OrderService`,
		},
		&metadata.ClassMetadata{
			Name: `App\Controller\HomeController`,
			Annotations: []metadata.Annotation{
				{Type: `App\Entity`, Values: map[string]interface{}{"table": "home"}},
				{Type: `App\Entity`, Values: map[string]interface{}{"table": "users"}},
			},
			Methods: []metadata.MethodMetadata{
				{Name: "index", Annotations: []metadata.Annotation{{Type: `App\Log`, Values: map[string]interface{}{"level": "debug"}}}},
			},
		},
	)
	require.NoError(t, err)
	return r
}

// universe is every class name of the fixture registry.
func universe(t *testing.T, r *metadata.Registry) *ClassNameIndex {
	t.Helper()
	return NewClassNameIndex(r.ClassNames()...)
}

type stubFilter struct {
	value   bool
	runtime *RuntimeExpression
	reduced []string
	calls   int
}

func (f *stubFilter) Matches(string, string, string, uint64) (bool, error) {
	f.calls++
	return f.value, nil
}

func (f *stubFilter) HasRuntimeEvaluationsDefinition() bool { return f.runtime != nil }

func (f *stubFilter) RuntimeEvaluationsDefinition() *RuntimeExpression { return f.runtime }

func (f *stubFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	if f.reduced == nil {
		return index
	}
	return index.Intersect(NewClassNameIndex(f.reduced...))
}

type mapResolver map[string]*Pointcut

func (m mapResolver) FindPointcut(aspectClassName, pointcutMethodName string) (*Pointcut, bool) {
	p, ok := m[aspectClassName+"->"+pointcutMethodName]
	return p, ok
}

var errNoSuchFilter = errors.New("no such filter")

type mapFilterResolver map[string]interface{}

func (m mapFilterResolver) ResolveFilter(name string) (interface{}, error) {
	v, ok := m[name]
	if !ok {
		return nil, errNoSuchFilter
	}
	return v, nil
}

// fold evaluates e the way compiled programs do, asking conditionValue for
// every leaf. argument is true for method argument conditions.
func fold(e *RuntimeExpression, conditionValue func(c Condition, argument bool) (bool, error)) (bool, error) {
	if e == nil {
		return true, nil
	}
	for _, c := range e.ArgumentConditions {
		ok, err := conditionValue(c, true)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, c := range e.Conditions {
		ok, err := conditionValue(c, false)
		if err != nil || !ok {
			return false, err
		}
	}

	result := true
	for i, t := range e.Terms {
		value := t.Static
		if value && t.Expression != nil {
			nested, err := fold(t.Expression, conditionValue)
			if err != nil {
				return false, err
			}
			value = nested
		}
		if i == 0 {
			if t.Operator.Negated() {
				value = !value
			}
			result = value
			continue
		}
		if t.Operator.Negated() {
			value = !value
		}
		if t.Operator.IsOr() {
			result = result || value
		} else {
			result = result && value
		}
	}
	return result, nil
}

func constantly(result bool) func(Condition, bool) (bool, error) {
	return func(Condition, bool) (bool, error) { return result, nil }
}

func isSubset(idx, other *ClassNameIndex) bool {
	for _, n := range idx.Names() {
		if !other.HasName(n) {
			return false
		}
	}
	return true
}
