package pointcut

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aop-weaver/internal/metadata"
	"github.com/aop-weaver/pkg/config"
	apperrors "github.com/aop-weaver/pkg/errors"
	"github.com/aop-weaver/pkg/utils"
)

// Designators understood by the parser.
const (
	DesignatorClass               = "class"
	DesignatorClassAnnotatedWith  = "classAnnotatedWith"
	DesignatorMethod              = "method"
	DesignatorMethodAnnotatedWith = "methodAnnotatedWith"
	DesignatorMethodTaggedWith    = "methodTaggedWith"
	DesignatorWithin              = "within"
	DesignatorFilter              = "filter"
	DesignatorSetting             = "setting"
	DesignatorEvaluate            = "evaluate"
)

var (
	visibilityPattern = regexp.MustCompile(`^(public|protected) +`)
	settingPattern    = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)\s*(?:(?:==|=)\s*(?:"([^"]*)"|'([^']*)'))?$`)
)

// FilterResolver resolves the name given to filter(...).
type FilterResolver interface {
	ResolveFilter(name string) (interface{}, error)
}

// ParserOptions holds the collaborators consulted while building filters.
type ParserOptions struct {
	Reflection ReflectionProvider
	Settings   config.SettingsProvider
	Filters    FilterResolver
	Pointcuts  PointcutResolver
	Logger     utils.Logger
}

// Parser turns pointcut expressions into composites.
type Parser struct {
	opts   ParserOptions
	logger utils.Logger
}

// NewParser creates a parser.
func NewParser(opts ParserOptions) *Parser {
	return &Parser{opts: opts, logger: utils.OrNull(opts.Logger)}
}

// Parse parses expression. sourceHint names where the expression was
// declared and is included in error messages.
func (p *Parser) Parse(expression, sourceHint string) (*Composite, error) {
	if err := checkParentheses(expression, sourceHint); err != nil {
		return nil, err
	}
	composite := NewComposite()
	if err := p.parseInto(composite, expression, sourceHint); err != nil {
		return nil, annotate(err, expression, sourceHint)
	}
	return composite, nil
}

type rawTerm struct {
	operator Operator
	text     string
}

func (p *Parser) parseInto(composite *Composite, expression, sourceHint string) error {
	terms, err := splitTerms(expression)
	if err != nil {
		return err
	}
	for _, t := range terms {
		if err := checkParentheses(t.text, sourceHint); err != nil {
			return err
		}
		if err := p.parseTerm(composite, t.operator, t.text, sourceHint); err != nil {
			return err
		}
	}
	return nil
}

// splitTerms splits on top level "&&" and "||" outside quotes. Leading "!"
// characters toggle the term's negation. A parenthesized group is a single
// term that parses into a nested composite, so "!" before it negates the
// group's result.
func splitTerms(expression string) ([]rawTerm, error) {
	var terms []rawTerm
	op := OpAnd
	depth := 0
	var quote byte
	start := 0

	add := func(text string) error {
		text = strings.TrimSpace(text)
		for strings.HasPrefix(text, "!") {
			op = op.Negate()
			text = strings.TrimSpace(text[1:])
		}
		if text == "" {
			return apperrors.New(apperrors.CodeParseError, "missing designator")
		}
		terms = append(terms, rawTerm{operator: op, text: text})
		return nil
	}

	for i := 0; i < len(expression); i++ {
		c := expression[i]
		if quote != 0 {
			if c == quote && expression[i-1] != '\\' {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case '&', '|':
			if depth > 0 || i+1 >= len(expression) || expression[i+1] != c {
				continue
			}
			if err := add(expression[start:i]); err != nil {
				return nil, err
			}
			op = OpAnd
			if c == '|' {
				op = OpOr
			}
			i++
			start = i + 1
		}
	}
	if err := add(expression[start:]); err != nil {
		return nil, err
	}
	return terms, nil
}

// checkParentheses counts parentheses outside quotes.
func checkParentheses(expression, sourceHint string) error {
	opened, closed := 0, 0
	var quote byte
	for i := 0; i < len(expression); i++ {
		c := expression[i]
		if quote != 0 {
			if c == quote && expression[i-1] != '\\' {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			opened++
		case ')':
			closed++
		}
	}
	if opened == closed {
		return nil
	}
	detail := &apperrors.ParenthesesError{Expression: expression, SourceHint: sourceHint}
	if closed > opened {
		detail.Excess = closed - opened
	} else {
		detail.Missing = opened - closed
	}
	return apperrors.Wrap(apperrors.CodeParseError, "unbalanced parentheses", detail)
}

func (p *Parser) parseTerm(composite *Composite, op Operator, term, sourceHint string) error {
	open := strings.IndexByte(term, '(')

	if open == 0 {
		if !strings.HasSuffix(term, ")") || matchingParen(term, 0) != len(term)-1 {
			return apperrors.Newf(apperrors.CodeParseError, "unexpected text after group %q", term)
		}
		sub := NewComposite()
		if err := p.parseInto(sub, term[1:len(term)-1], sourceHint); err != nil {
			return err
		}
		composite.AddFilter(op, sub)
		return nil
	}

	if open < 0 {
		return p.addReference(composite, op, term)
	}

	designator := strings.TrimSpace(term[:open])
	end := matchingParen(term, open)
	if end < 0 || strings.TrimSpace(term[end+1:]) != "" {
		return apperrors.Newf(apperrors.CodeParseError, "unexpected text after %s(...) in %q", designator, term)
	}
	payload := strings.TrimSpace(term[open+1 : end])

	switch designator {
	case DesignatorClass:
		f, err := NewClassNameFilter(payload)
		if err != nil {
			return err
		}
		composite.AddFilter(op, f)
	case DesignatorClassAnnotatedWith:
		annotationType, constraints, err := parseAnnotationPayload(payload)
		if err != nil {
			return err
		}
		composite.AddFilter(op, NewClassAnnotatedWithFilter(p.opts.Reflection, annotationType, constraints))
	case DesignatorMethod:
		return p.addMethodFilters(composite, op, payload)
	case DesignatorMethodAnnotatedWith:
		annotationType, constraints, err := parseAnnotationPayload(payload)
		if err != nil {
			return err
		}
		composite.AddFilter(op, NewMethodAnnotatedWithFilter(p.opts.Reflection, annotationType, constraints))
	case DesignatorMethodTaggedWith:
		p.logger.Warn("methodTaggedWith(%s) is deprecated, use methodAnnotatedWith() instead (%s)", payload, sourceHint)
		f, err := NewMethodTaggedWithFilter(p.opts.Reflection, payload)
		if err != nil {
			return err
		}
		composite.AddFilter(op, f)
	case DesignatorWithin:
		f, err := NewClassTypeFilter(p.opts.Reflection, payload)
		if err != nil {
			return err
		}
		composite.AddFilter(op, f)
	case DesignatorFilter:
		return p.addCustomFilter(composite, op, payload)
	case DesignatorSetting:
		return p.addSettingFilter(composite, op, payload)
	case DesignatorEvaluate:
		conditions, err := ParseConstraints(payload)
		if err != nil {
			return err
		}
		composite.AddEvaluation(op, conditions)
	default:
		if strings.Contains(designator, "->") && payload == "" {
			return p.addReference(composite, op, designator)
		}
		if designator == "" {
			return apperrors.Newf(apperrors.CodeParseError, "missing designator in %q", term)
		}
		return apperrors.Newf(apperrors.CodeParseError, "unsupported designator %q", designator)
	}
	return nil
}

func (p *Parser) addReference(composite *Composite, op Operator, term string) error {
	aspectClassName, pointcutMethodName, ok := strings.Cut(term, "->")
	aspectClassName = metadata.NormalizeName(strings.TrimSpace(aspectClassName))
	pointcutMethodName = strings.TrimSpace(pointcutMethodName)
	if !ok || aspectClassName == "" || pointcutMethodName == "" {
		return apperrors.Newf(apperrors.CodeParseError,
			"%q is neither a designator nor a pointcut reference of the form Aspect->method", term)
	}
	composite.AddFilter(op, NewReferenceFilter(p.opts.Pointcuts, aspectClassName, pointcutMethodName))
	return nil
}

// addMethodFilters handles [visibility ]ClassPattern->methodPattern(constraints).
// The class and method filters are added inline under AND and as a group
// otherwise, so the operator applies to both.
func (p *Parser) addMethodFilters(composite *Composite, op Operator, payload string) error {
	visibility := ""
	if m := visibilityPattern.FindStringSubmatch(payload); m != nil {
		visibility = m[1]
		payload = payload[len(m[0]):]
		if visibilityPattern.MatchString(payload) {
			return apperrors.Newf(apperrors.CodeParseError, "more than one visibility modifier in method(%s)", payload)
		}
	}

	classPattern, rest, ok := strings.Cut(payload, "->")
	if !ok {
		return apperrors.Newf(apperrors.CodeParseError, "missing -> in method(%s)", payload)
	}
	rest = strings.TrimSpace(rest)
	open := strings.IndexByte(rest, '(')
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return apperrors.Newf(apperrors.CodeParseError, "method pattern %q requires an argument list", rest)
	}
	methodPattern := rest[:open]

	constraints, err := ParseConstraints(rest[open+1 : len(rest)-1])
	if err != nil {
		return err
	}
	classFilter, err := NewClassNameFilter(classPattern)
	if err != nil {
		return err
	}
	methodFilter, err := NewMethodNameFilter(p.opts.Reflection, methodPattern, visibility, constraints, p.logger)
	if err != nil {
		return err
	}

	if op == OpAnd {
		composite.AddFilter(OpAnd, classFilter)
		composite.AddFilter(OpAnd, methodFilter)
		return nil
	}
	sub := NewComposite()
	sub.AddFilter(OpAnd, classFilter)
	sub.AddFilter(OpAnd, methodFilter)
	composite.AddFilter(op, sub)
	return nil
}

func (p *Parser) addCustomFilter(composite *Composite, op Operator, name string) error {
	name = metadata.NormalizeName(name)
	if p.opts.Filters == nil {
		return apperrors.Newf(apperrors.CodeResolutionError, "no filter registry to resolve filter(%s)", name)
	}
	value, err := p.opts.Filters.ResolveFilter(name)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeResolutionError, "cannot resolve filter "+name, err)
	}
	f, err := NewCustomFilter(name, value)
	if err != nil {
		return err
	}
	composite.AddFilter(op, f)
	return nil
}

func (p *Parser) addSettingFilter(composite *Composite, op Operator, payload string) error {
	if payload == "" {
		return apperrors.New(apperrors.CodeParseError, "setting() requires a configuration path")
	}
	m := settingPattern.FindStringSubmatch(payload)
	if m == nil {
		return apperrors.Newf(apperrors.CodeParseError,
			"invalid setting(%s), expected a path optionally compared to a quoted value", payload)
	}
	var expected *string
	if strings.ContainsRune(payload, '=') {
		value := m[2] + m[3]
		expected = &value
	}
	f, err := NewSettingFilter(p.opts.Settings, m[1], expected)
	if err != nil {
		return err
	}
	composite.AddFilter(op, f)
	return nil
}

// parseAnnotationPayload splits "Type" or "Type(constraints)".
func parseAnnotationPayload(payload string) (string, []Condition, error) {
	open := strings.IndexByte(payload, '(')
	if open < 0 {
		if payload == "" {
			return "", nil, apperrors.New(apperrors.CodeParseError, "missing annotation type")
		}
		return payload, nil, nil
	}
	if !strings.HasSuffix(payload, ")") {
		return "", nil, apperrors.Newf(apperrors.CodeParseError, "invalid annotation constraint %q", payload)
	}
	constraints, err := ParseConstraints(payload[open+1 : len(payload)-1])
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(payload[:open]), constraints, nil
}

// matchingParen returns the index of the parenthesis closing the one at
// open, or -1.
func matchingParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote && s[i-1] != '\\' {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func annotate(err error, expression, sourceHint string) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return apperrors.Wrap(apperrors.CodeParseError, fmt.Sprintf("invalid expression %q", expression), err)
	}
	msg := fmt.Sprintf("%s in expression %q", appErr.Message, expression)
	if sourceHint != "" {
		msg += " defined in " + sourceHint
	}
	return &apperrors.AppError{Code: appErr.Code, Message: msg, Err: appErr.Err}
}
