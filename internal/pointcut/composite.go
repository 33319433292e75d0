package pointcut

import (
	"strings"
)

type compositeTerm struct {
	operator Operator
	filter   Filter
}

// Composite is an ordered chain of filters folded left to right. "&&" and
// "||" have equal precedence; a negated operator inverts only its own term.
// evaluate(...) clauses are ordinary terms whose verdict is deferred to call
// time, so they fold in the position they were written.
type Composite struct {
	terms []compositeTerm
}

// NewComposite creates an empty composite. An empty composite matches
// everything.
func NewComposite() *Composite {
	return &Composite{}
}

// AddFilter appends a term.
func (c *Composite) AddFilter(op Operator, f Filter) {
	c.terms = append(c.terms, compositeTerm{operator: op, filter: f})
}

// AddEvaluation appends an evaluate(...) term.
func (c *Composite) AddEvaluation(op Operator, conditions []Condition) {
	c.AddFilter(op, NewEvaluateFilter(conditions))
}

// Len returns the number of filter terms.
func (c *Composite) Len() int {
	return len(c.terms)
}

// Filters returns the filters in term order.
func (c *Composite) Filters() []Filter {
	out := make([]Filter, len(c.terms))
	for i, t := range c.terms {
		out[i] = t.filter
	}
	return out
}

// Matches returns the static verdict. When runtime conditions exist, true
// means the call may match.
func (c *Composite) Matches(className, methodName, declaringClassName string, queryID uint64) (bool, error) {
	matches, _, err := c.MatchesWithRuntime(className, methodName, declaringClassName, queryID)
	return matches, err
}

// MatchesWithRuntime folds every term and collects the runtime expression of
// terms that defer part of their decision. A deferred term counts as true in
// the static fold, so a static false is final.
func (c *Composite) MatchesWithRuntime(className, methodName, declaringClassName string, queryID uint64) (bool, *RuntimeExpression, error) {
	result := true
	deferred := false
	terms := make([]RuntimeTerm, 0, len(c.terms))

	for i, t := range c.terms {
		matches, rt, err := matchTerm(t.filter, className, methodName, declaringClassName, queryID)
		if err != nil {
			return false, nil, err
		}

		value := matches
		if matches && !rt.IsEmpty() {
			deferred = true
		} else {
			rt = nil
			if t.operator.Negated() {
				value = !value
			}
		}
		terms = append(terms, RuntimeTerm{Operator: t.operator, Static: matches, Expression: rt})

		switch {
		case i == 0:
			result = value
		case t.operator.IsOr():
			result = result || value
		default:
			result = result && value
		}
	}

	if !result {
		return false, nil, nil
	}
	if !deferred {
		return true, nil, nil
	}
	return true, &RuntimeExpression{Terms: terms}, nil
}

// HasRuntimeEvaluationsDefinition reports whether any term carries a
// statically known runtime definition.
func (c *Composite) HasRuntimeEvaluationsDefinition() bool {
	for _, t := range c.terms {
		if t.filter.HasRuntimeEvaluationsDefinition() {
			return true
		}
	}
	return false
}

// RuntimeEvaluationsDefinition returns the definition assuming every term
// matched statically. Match-specific definitions come from MatchesWithRuntime.
func (c *Composite) RuntimeEvaluationsDefinition() *RuntimeExpression {
	if !c.HasRuntimeEvaluationsDefinition() {
		return nil
	}
	terms := make([]RuntimeTerm, len(c.terms))
	for i, t := range c.terms {
		terms[i] = RuntimeTerm{Operator: t.operator, Static: true}
		if t.filter.HasRuntimeEvaluationsDefinition() {
			terms[i].Expression = t.filter.RuntimeEvaluationsDefinition()
		}
	}
	return &RuntimeExpression{Terms: terms}
}

// ReduceTargetClassNames folds the terms' reductions: AND intersects, OR
// unions. A negated term and an evaluate(...) term do not narrow the index,
// so OR-ing either one restores the full index from that position on.
func (c *Composite) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	if len(c.terms) == 0 {
		return index
	}

	var result *ClassNameIndex
	for i, t := range c.terms {
		reduced := index
		if !t.operator.Negated() {
			reduced = t.filter.ReduceTargetClassNames(index)
		}
		switch {
		case i == 0:
			result = reduced
		case t.operator.IsOr():
			result = result.Union(reduced)
		default:
			result = result.Intersect(reduced)
		}
	}
	return result
}

func (c *Composite) String() string {
	var sb strings.Builder
	for i, t := range c.terms {
		if i > 0 {
			sb.WriteString(" " + string(t.operator.base()) + " ")
		}
		if t.operator.Negated() {
			sb.WriteString("!")
		}
		if sub, ok := t.filter.(*Composite); ok {
			sb.WriteString("(" + sub.String() + ")")
		} else {
			sb.WriteString(Describe(t.filter))
		}
	}
	return sb.String()
}
