package pointcut

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/aop-weaver/pkg/errors"
)

const operandPattern = `"(?:\\"|[^"])*"|'(?:\\'|[^'])*'|\([^)]*\)|[A-Za-z0-9\-_.]+`

// constraintPattern matches one "left op right" triple at the start of the input.
var constraintPattern = regexp.MustCompile(`^\s*(` + operandPattern + `)\s*(===|!==|==|!=|<=|>=|=|<|>|\bin\b|\bcontains\b|\bmatches\b)\s*(` + operandPattern + `)\s*(,|$)`)

// ParseConstraints splits a comma separated constraint list into conditions.
// "=" is normalized to "==".
func ParseConstraints(input string) ([]Condition, error) {
	rest := strings.TrimSpace(input)
	var conditions []Condition
	for rest != "" {
		m := constraintPattern.FindStringSubmatch(rest)
		if m == nil {
			return nil, apperrors.Newf(apperrors.CodeParseError, "invalid constraint %q", rest)
		}
		op := m[2]
		if op == "=" {
			op = "=="
		}
		conditions = append(conditions, Condition{Left: m[1], Operator: op, Right: m[3]})
		rest = strings.TrimSpace(rest[len(m[0]):])
	}
	return conditions, nil
}

// ParseOperand converts operand source text into a value: quoted strings,
// numbers, TRUE/FALSE/NULL and parenthesized lists. Anything else is
// returned as the bare string.
func ParseOperand(raw string) interface{} {
	raw = strings.TrimSpace(raw)
	if n := len(raw); n >= 2 {
		if (raw[0] == '"' && raw[n-1] == '"') || (raw[0] == '\'' && raw[n-1] == '\'') {
			return strings.ReplaceAll(raw[1:n-1], `\`+raw[:1], raw[:1])
		}
		if raw[0] == '(' && raw[n-1] == ')' {
			items := splitList(raw[1 : n-1])
			values := make([]interface{}, len(items))
			for i, item := range items {
				values[i] = ParseOperand(item)
			}
			return values
		}
	}
	switch strings.ToUpper(raw) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	case "NULL":
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// splitList splits on commas outside quotes.
func splitList(s string) []string {
	var items []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote && s[i-1] != '\\' {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ',':
			items = append(items, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(items) > 0 {
		items = append(items, last)
	}
	return items
}

// CompareValues applies a constraint operator to two values.
func CompareValues(op string, left, right interface{}) (bool, error) {
	switch op {
	case "==", "=":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "===":
		return strictEqual(left, right), nil
	case "!==":
		return !strictEqual(left, right), nil
	case "<", "<=", ">", ">=":
		return compareOrdered(op, left, right), nil
	case "in":
		list, ok := toList(right)
		if !ok {
			return false, apperrors.Newf(apperrors.CodeExpressionError, "right operand of 'in' must be a list, got %T", right)
		}
		return containsValue(list, left), nil
	case "contains":
		if list, ok := toList(left); ok {
			return containsValue(list, right), nil
		}
		if s, ok := left.(string); ok {
			return strings.Contains(s, fmt.Sprint(right)), nil
		}
		return false, nil
	case "matches":
		l, lok := toList(left)
		r, rok := toList(right)
		if !lok || !rok {
			return false, apperrors.Newf(apperrors.CodeExpressionError, "operands of 'matches' must be lists")
		}
		for _, v := range l {
			if containsValue(r, v) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, apperrors.Newf(apperrors.CodeExpressionError, "unknown operator %q", op)
}

func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.(bool); ok {
		return ab == truthy(b)
	}
	if bb, ok := b.(bool); ok {
		return bb == truthy(a)
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func strictEqual(a, b interface{}) bool {
	if af, ok := numberValue(a); ok {
		bf, ok := numberValue(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func compareOrdered(op string, a, b interface{}) bool {
	var cmp int
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	switch {
	case aok && bok:
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		}
	default:
		cmp = strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	default:
		return cmp >= 0
	}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	}
	if f, ok := numberValue(v); ok {
		return f != 0
	}
	if list, ok := toList(v); ok {
		return len(list) > 0
	}
	return true
}

// numberValue converts Go numeric kinds only.
func numberValue(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// toFloat also accepts numeric strings.
func toFloat(v interface{}) (float64, bool) {
	if f, ok := numberValue(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func toList(v interface{}) ([]interface{}, bool) {
	if list, ok := v.([]interface{}); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]interface{}, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if looseEqual(item, v) {
			return true
		}
	}
	return false
}

// matchConstraints checks static conditions against a property lookup. A
// missing property fails the match.
func matchConstraints(conditions []Condition, lookup func(name string) (interface{}, bool)) (bool, error) {
	for _, c := range conditions {
		actual, ok := lookup(c.Left)
		if !ok {
			return false, nil
		}
		matches, err := CompareValues(c.Operator, actual, ParseOperand(c.Right))
		if err != nil || !matches {
			return false, err
		}
	}
	return true, nil
}
