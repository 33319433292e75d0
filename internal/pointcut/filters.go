package pointcut

import (
	"fmt"
	"sync"

	"github.com/aop-weaver/pkg/config"
	apperrors "github.com/aop-weaver/pkg/errors"
)

// CustomFilter delegates to a user supplied filter registered by name.
type CustomFilter struct {
	name     string
	delegate Filter
}

// NewCustomFilter checks that value implements Filter.
func NewCustomFilter(name string, value interface{}) (*CustomFilter, error) {
	delegate, ok := value.(Filter)
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeResolutionError,
			"custom filter %q of type %T does not implement the pointcut filter interface", name, value)
	}
	return &CustomFilter{name: name, delegate: delegate}, nil
}

func (f *CustomFilter) Matches(className, methodName, declaringClassName string, queryID uint64) (bool, error) {
	return f.delegate.Matches(className, methodName, declaringClassName, queryID)
}

func (f *CustomFilter) HasRuntimeEvaluationsDefinition() bool {
	return f.delegate.HasRuntimeEvaluationsDefinition()
}

func (f *CustomFilter) RuntimeEvaluationsDefinition() *RuntimeExpression {
	return f.delegate.RuntimeEvaluationsDefinition()
}

func (f *CustomFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	return f.delegate.ReduceTargetClassNames(index)
}

func (f *CustomFilter) String() string {
	return "filter(" + f.name + ")"
}

// SettingFilter matches everything or nothing depending on a configuration
// value. The value is read once, at construction.
type SettingFilter struct {
	staticOnly
	path      string
	condition string
	matches   bool
}

// NewSettingFilter resolves path in settings. Without an expected value the
// setting must be a boolean; with one, the setting is compared to it.
func NewSettingFilter(settings config.SettingsProvider, path string, expected *string) (*SettingFilter, error) {
	if path == "" {
		return nil, apperrors.New(apperrors.CodeParseError, "setting() requires a configuration path")
	}
	f := &SettingFilter{path: path}
	var value interface{}
	if settings != nil {
		value, _ = settings.Setting(path)
	}

	if expected == nil {
		if value == nil {
			return f, nil
		}
		b, ok := value.(bool)
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeInvalidPointcut,
				"setting %q must be a boolean when used without a condition, got %T", path, value)
		}
		f.matches = b
		return f, nil
	}

	f.condition = *expected
	f.matches = value != nil && fmt.Sprint(value) == *expected
	return f, nil
}

func (f *SettingFilter) Matches(string, string, string, uint64) (bool, error) {
	return f.matches, nil
}

func (f *SettingFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	if !f.matches {
		return NewClassNameIndex()
	}
	return index
}

func (f *SettingFilter) String() string {
	if f.condition != "" {
		return fmt.Sprintf("setting(%s == %q)", f.path, f.condition)
	}
	return "setting(" + f.path + ")"
}

// PointcutResolver looks up named pointcuts declared by aspects.
type PointcutResolver interface {
	FindPointcut(aspectClassName, pointcutMethodName string) (*Pointcut, bool)
}

// ReferenceFilter delegates to a named pointcut. The pointcut is resolved on
// first use so aspects may reference pointcuts declared after them.
type ReferenceFilter struct {
	aspectClassName    string
	pointcutMethodName string
	resolver           PointcutResolver

	mu       sync.Mutex
	pointcut *Pointcut
}

// NewReferenceFilter creates a reference to aspectClassName->pointcutMethodName.
func NewReferenceFilter(resolver PointcutResolver, aspectClassName, pointcutMethodName string) *ReferenceFilter {
	return &ReferenceFilter{
		aspectClassName:    aspectClassName,
		pointcutMethodName: pointcutMethodName,
		resolver:           resolver,
	}
}

func (f *ReferenceFilter) resolve() (*Pointcut, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pointcut != nil {
		return f.pointcut, nil
	}
	if f.resolver != nil {
		if p, ok := f.resolver.FindPointcut(f.aspectClassName, f.pointcutMethodName); ok {
			f.pointcut = p
			return p, nil
		}
	}
	return nil, apperrors.Newf(apperrors.CodeUnknownPointcut,
		"no pointcut %s->%s is declared", f.aspectClassName, f.pointcutMethodName)
}

func (f *ReferenceFilter) Matches(className, methodName, declaringClassName string, queryID uint64) (bool, error) {
	matches, _, err := f.MatchesWithRuntime(className, methodName, declaringClassName, queryID)
	return matches, err
}

func (f *ReferenceFilter) MatchesWithRuntime(className, methodName, declaringClassName string, queryID uint64) (bool, *RuntimeExpression, error) {
	p, err := f.resolve()
	if err != nil {
		return false, nil, err
	}
	return p.MatchesWithRuntime(className, methodName, declaringClassName, queryID)
}

func (f *ReferenceFilter) HasRuntimeEvaluationsDefinition() bool {
	p, err := f.resolve()
	return err == nil && p.HasRuntimeEvaluationsDefinition()
}

func (f *ReferenceFilter) RuntimeEvaluationsDefinition() *RuntimeExpression {
	p, err := f.resolve()
	if err != nil {
		return nil
	}
	return p.RuntimeEvaluationsDefinition()
}

// ReduceTargetClassNames returns index unchanged when the reference cannot
// be resolved; the error surfaces at match time.
func (f *ReferenceFilter) ReduceTargetClassNames(index *ClassNameIndex) *ClassNameIndex {
	p, err := f.resolve()
	if err != nil {
		return index
	}
	return p.ReduceTargetClassNames(index)
}

func (f *ReferenceFilter) String() string {
	return f.aspectClassName + "->" + f.pointcutMethodName
}
