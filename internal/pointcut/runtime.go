package pointcut

import (
	"fmt"
	"strings"
)

// Condition is one deferred comparison, kept as source text until it is
// compiled for call time.
type Condition struct {
	Left     string `json:"left"`
	Operator string `json:"operator"`
	Right    string `json:"right"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Operator, c.Right)
}

// RuntimeTerm is one folded term of a runtime expression. Static is the
// term's match-time verdict before negation.
type RuntimeTerm struct {
	Operator   Operator           `json:"operator"`
	Static     bool               `json:"static"`
	Expression *RuntimeExpression `json:"expression,omitempty"`
}

// RuntimeExpression is the part of a pointcut decided per call.
//
// Its value is: every entry of ArgumentConditions holds, AND every entry of
// Conditions holds, AND the left fold of Terms holds (true when there are no
// terms). Left operands of ArgumentConditions name method arguments;
// Conditions come from evaluate(...) and resolve against this, current and
// args.
type RuntimeExpression struct {
	ArgumentConditions []Condition   `json:"argument_conditions,omitempty"`
	Conditions         []Condition   `json:"conditions,omitempty"`
	Terms              []RuntimeTerm `json:"terms,omitempty"`
}

// IsEmpty reports whether the expression holds no deferred condition at all.
func (e *RuntimeExpression) IsEmpty() bool {
	if e == nil {
		return true
	}
	if len(e.ArgumentConditions) > 0 || len(e.Conditions) > 0 {
		return false
	}
	for _, t := range e.Terms {
		if !t.Expression.IsEmpty() {
			return false
		}
	}
	return true
}

// String renders the expression in a compact, stable form.
func (e *RuntimeExpression) String() string {
	if e == nil {
		return "true"
	}
	var parts []string
	for _, c := range e.ArgumentConditions {
		parts = append(parts, "arg "+c.String())
	}
	if len(e.Conditions) > 0 {
		parts = append(parts, evaluateString(e.Conditions))
	}
	if len(e.Terms) > 0 {
		var sb strings.Builder
		for i, t := range e.Terms {
			if i > 0 {
				sb.WriteString(" " + string(t.Operator.base()) + " ")
			}
			if t.Operator.Negated() {
				sb.WriteString("!")
			}
			fmt.Fprintf(&sb, "[%t", t.Static)
			if t.Expression != nil {
				sb.WriteString(" && " + t.Expression.String())
			}
			sb.WriteString("]")
		}
		parts = append(parts, "("+sb.String()+")")
	}
	out := strings.Join(parts, " && ")
	if out == "" {
		out = "true"
	}
	return out
}

func (o Operator) base() Operator {
	if o.IsOr() {
		return OpOr
	}
	return OpAnd
}

func evaluateString(conditions []Condition) string {
	conds := make([]string, len(conditions))
	for i, c := range conditions {
		conds[i] = c.String()
	}
	return "evaluate(" + strings.Join(conds, ", ") + ")"
}

// EvaluateFilter is an evaluate(...) term. It may match any class; its
// conditions are decided per call.
type EvaluateFilter struct {
	conditions []Condition
}

// NewEvaluateFilter creates an evaluate(...) term.
func NewEvaluateFilter(conditions []Condition) *EvaluateFilter {
	return &EvaluateFilter{conditions: conditions}
}

func (f *EvaluateFilter) Matches(className, methodName, declaringClassName string, queryID uint64) (bool, error) {
	return true, nil
}

func (f *EvaluateFilter) HasRuntimeEvaluationsDefinition() bool {
	return len(f.conditions) > 0
}

func (f *EvaluateFilter) RuntimeEvaluationsDefinition() *RuntimeExpression {
	if len(f.conditions) == 0 {
		return nil
	}
	return &RuntimeExpression{Conditions: f.conditions}
}

// ReduceTargetClassNames keeps every class: the verdict is only known per call.
func (f *EvaluateFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	return index
}

func (f *EvaluateFilter) String() string {
	return evaluateString(f.conditions)
}
