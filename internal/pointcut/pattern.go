package pointcut

import (
	"regexp"
	"strings"

	"github.com/aop-weaver/internal/metadata"
	apperrors "github.com/aop-weaver/pkg/errors"
)

// namePattern is a compiled class or method name pattern. Patterns are
// regular expressions where a bare "*" means ".*", a "." not followed by a
// quantifier is literal, and "\" is the namespace separator.
type namePattern struct {
	source string
	regex  *regexp.Regexp
	prefix string
}

func compileNamePattern(pattern string, caseInsensitive bool) (*namePattern, error) {
	pattern = metadata.NormalizeName(strings.TrimSpace(pattern))
	if pattern == "" {
		return nil, apperrors.New(apperrors.CodeInvalidPointcut, "empty name pattern")
	}

	var sb strings.Builder
	if caseInsensitive {
		sb.WriteString("(?i)")
	}
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '.':
			if i+1 < len(pattern) && strings.IndexByte("*+?", pattern[i+1]) >= 0 {
				sb.WriteByte('.')
			} else {
				sb.WriteString(`\.`)
			}
		case '*':
			if i > 0 && pattern[i-1] == '.' {
				sb.WriteByte('*')
			} else {
				sb.WriteString(".*")
			}
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidPointcut, "invalid name pattern "+pattern, err)
	}
	np := &namePattern{source: pattern, regex: re}
	if !caseInsensitive {
		np.prefix = literalPrefix(pattern)
	}
	return np, nil
}

// literalPrefix returns the leading run of characters with no pattern meaning.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, ".*+?()[]{}|^$"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

func (p *namePattern) match(name string) bool {
	return p.regex.MatchString(metadata.NormalizeName(name))
}

// reduce keeps the names of index matching the pattern.
func (p *namePattern) reduce(index *ClassNameIndex) *ClassNameIndex {
	candidates := index.FilterByPrefix(p.prefix)
	var out []string
	for _, name := range candidates.Names() {
		if p.regex.MatchString(name) {
			out = append(out, name)
		}
	}
	return NewClassNameIndex(out...)
}
