package expression

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/aop-weaver/internal/dispatch"
	"github.com/aop-weaver/internal/pointcut"
	"github.com/aop-weaver/internal/repository"
	apperrors "github.com/aop-weaver/pkg/errors"
	"github.com/aop-weaver/pkg/utils"
)

// InterruptedMessage is the reason given when an evaluation is interrupted.
const InterruptedMessage = "RuntimeError: timeout"

// Evaluator compiles runtime expressions once and evaluates them per call.
//
// Programs are compiled during weaving and read concurrently afterwards;
// every evaluation runs in a fresh goja runtime.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*goja.Program

	repo    repository.ExpressionRepository
	objects map[string]interface{}
	timeout time.Duration
	clock   utils.Clock
	logger  utils.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRepository persists compiled expressions.
func WithRepository(repo repository.ExpressionRepository) Option {
	return func(e *Evaluator) {
		e.repo = repo
	}
}

// WithObjects sets the objects reachable as current.<name>.
func WithObjects(objects map[string]interface{}) Option {
	return func(e *Evaluator) {
		e.objects = objects
	}
}

// WithTimeout bounds a single evaluation.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		e.timeout = d
	}
}

// WithClock sets the clock used to timestamp persisted expressions.
func WithClock(clock utils.Clock) Option {
	return func(e *Evaluator) {
		e.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator creates an evaluator with no compiled programs.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		programs: make(map[string]*goja.Program),
		clock:    utils.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNull(e.logger)
	return e
}

// Compile compiles rt and returns its identifier. An empty expression has
// nothing to decide at call time and yields "".
func (e *Evaluator) Compile(ctx context.Context, rt *pointcut.RuntimeExpression) (string, error) {
	if rt.IsEmpty() {
		return "", nil
	}
	source, err := Source(rt)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeExpressionError, "failed to render "+rt.String(), err)
	}
	id := ID(source)

	created, err := e.compile(id, source)
	if err != nil {
		return "", err
	}
	if created && e.repo != nil {
		err := e.repo.Save(ctx, &repository.CompiledExpression{
			ID:          id,
			Source:      source,
			Description: rt.String(),
			CreatedAt:   e.clock.Now(),
		})
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeDatabaseError, "failed to persist expression", err)
		}
	}
	return id, nil
}

func (e *Evaluator) compile(id, source string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.programs[id]; ok {
		return false, nil
	}
	program, err := goja.Compile(id, source, true)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeExpressionError, "failed to compile expression "+id, err)
	}
	e.programs[id] = program
	e.logger.Debug("Compiled runtime expression %s", id)
	return true, nil
}

// Load compiles every expression stored in the repository. It returns the
// number of programs added.
func (e *Evaluator) Load(ctx context.Context) (int, error) {
	if e.repo == nil {
		return 0, nil
	}
	stored, err := e.repo.List(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to load expressions", err)
	}
	added := 0
	for _, expr := range stored {
		if ID(expr.Source) != expr.ID {
			e.logger.Warn("Skipping stored expression %s: identifier does not match its source", expr.ID)
			continue
		}
		created, err := e.compile(expr.ID, expr.Source)
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	e.logger.Info("Loaded %d runtime expressions from cache", added)
	return added, nil
}

// Has reports whether a program is compiled for id.
func (e *Evaluator) Has(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.programs[id]
	return ok
}

// Len returns the number of compiled programs.
func (e *Evaluator) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.programs)
}

// Evaluate runs the program id against one call.
func (e *Evaluator) Evaluate(ctx context.Context, id string, jp *dispatch.JoinPoint) (bool, error) {
	e.mu.RLock()
	program, ok := e.programs[id]
	e.mu.RUnlock()
	if !ok {
		return false, apperrors.Newf(apperrors.CodeUnknownExpression, "runtime expression %s was never compiled", id)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(fieldNameMapper{})

	env := map[string]interface{}{
		RootArgs:    map[string]interface{}{},
		RootCurrent: e.objects,
		RootThis:    nil,
		"compare":   pointcut.CompareValues,
	}
	if jp != nil {
		env[RootArgs] = jp.Arguments().Map()
		env[RootThis] = jp.Proxy()
		env["class"] = jp.ClassName()
		env["method"] = jp.MethodName()
	}
	if err := vm.Set("_", env); err != nil {
		return false, apperrors.Wrap(apperrors.CodeExpressionError, "failed to prepare runtime", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		vm.Interrupt(InterruptedMessage)
	}()

	v, err := runProgram(vm, program)
	cancel()
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeExpressionError, "failed to evaluate expression "+id, err)
	}
	return v.ToBoolean(), nil
}

// Gate returns a dispatch gate evaluating id for each call.
func (e *Evaluator) Gate(id string) dispatch.Gate {
	return func(jp *dispatch.JoinPoint) (bool, error) {
		return e.Evaluate(context.Background(), id, jp)
	}
}

func runProgram(vm *goja.Runtime, p *goja.Program) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return vm.RunProgram(p)
}

// fieldNameMapper exposes struct fields by their json name, falling back to
// the field name with a lower-case first letter.
type fieldNameMapper struct{}

func (fieldNameMapper) FieldName(_ reflect.Type, f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
		return tag
	}
	return uncapitalize(f.Name)
}

func (fieldNameMapper) MethodName(_ reflect.Type, m reflect.Method) string {
	return uncapitalize(m.Name)
}

func uncapitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
