// Package expression compiles the deferred conditions of pointcuts into
// ECMAScript programs and evaluates them per call with goja.
package expression

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aop-weaver/internal/pointcut"
)

// Operand roots usable in conditions.
const (
	RootThis    = "this"
	RootCurrent = "current"
	RootArgs    = "args"
)

// prelude wraps a rendered condition into a program whose completion value
// is the verdict. get walks a property path and yields undefined for missing
// links instead of throwing.
const prelude = `(function() {
function get(o, p) {
	for (var i = 0; i < p.length; i++) {
		if (o === null || o === undefined) {
			return undefined;
		}
		o = o[p[i]];
	}
	return o;
}
return !!(%s);
}());
`

// Source renders a runtime expression into program text.
func Source(rt *pointcut.RuntimeExpression) (string, error) {
	body, err := render(rt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(prelude, body), nil
}

// ID returns the stable identifier of program text.
func ID(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// render emits the conjunction of the argument conditions, the evaluate(...)
// conditions and the left fold of the terms. Every term stays in its
// position, so evaluate(...) terms fold where they were written.
func render(e *pointcut.RuntimeExpression) (string, error) {
	if e == nil {
		return "true", nil
	}

	var parts []string
	for _, c := range e.ArgumentConditions {
		s, err := renderCondition(c, true)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	for _, c := range e.Conditions {
		s, err := renderCondition(c, false)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}

	if len(e.Terms) > 0 {
		acc := ""
		for i, t := range e.Terms {
			value := "false"
			if t.Static {
				value = "true"
				if t.Expression != nil {
					nested, err := render(t.Expression)
					if err != nil {
						return "", err
					}
					value = "(" + nested + ")"
				}
			}
			if t.Operator.Negated() {
				value = "!" + value
			}
			if i == 0 {
				acc = value
				continue
			}
			acc = fmt.Sprintf("(%s %s %s)", acc, joiner(t.Operator), value)
		}
		parts = append(parts, acc)
	}

	if len(parts) == 0 {
		return "true", nil
	}
	return strings.Join(parts, " && "), nil
}

func joiner(op pointcut.Operator) string {
	if op.IsOr() {
		return "||"
	}
	return "&&"
}

func renderCondition(c pointcut.Condition, argument bool) (string, error) {
	var left string
	if argument {
		left = pathExpression(RootArgs, strings.Split(c.Left, "."))
	} else {
		var err error
		if left, err = renderOperand(c.Left); err != nil {
			return "", err
		}
	}
	right, err := renderOperand(c.Right)
	if err != nil {
		return "", err
	}
	op, err := literal(c.Operator)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("_.compare(%s, %s, %s)", op, left, right), nil
}

// renderOperand turns operand source text into a JS expression: paths below
// this, current and args are looked up at call time, everything else is a
// literal.
func renderOperand(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, root := range []string{RootThis, RootCurrent, RootArgs} {
		if raw == root {
			return "_." + root, nil
		}
		if strings.HasPrefix(raw, root+".") {
			return pathExpression(root, strings.Split(raw[len(root)+1:], ".")), nil
		}
	}
	js, err := literal(pointcut.ParseOperand(raw))
	if err != nil {
		return "", fmt.Errorf("failed to render operand %q: %w", raw, err)
	}
	return js, nil
}

func pathExpression(root string, path []string) string {
	js, _ := literal(path)
	return fmt.Sprintf("get(_.%s, %s)", root, js)
}

// literal encodes v as a JSON value, which is also a valid JS literal.
func literal(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
