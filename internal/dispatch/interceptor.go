package dispatch

import (
	"errors"
	"sync"

	apperrors "github.com/aop-weaver/pkg/errors"
	"github.com/aop-weaver/pkg/utils"
)

// Plan holds the advice of one method grouped by kind, each group in
// weaving order.
type Plan struct {
	Before         []Advice
	Around         []Advice
	AfterReturning []Advice
	AfterThrowing  []Advice
	After          []Advice
}

// IsEmpty reports whether the plan has no advice at all.
func (p Plan) IsEmpty() bool {
	return len(p.Before)+len(p.Around)+len(p.AfterReturning)+len(p.AfterThrowing)+len(p.After) == 0
}

// Interceptor executes a Plan around a method body:
//
//	Before, then the Around chain wrapping the body, then
//	AfterReturning and After on success, or
//	AfterThrowing and After on failure, after which the error is returned.
//
// After advice runs exactly once per call. Errors raised by advice while a
// failure is handled are logged and never replace the original error.
type Interceptor struct {
	className  string
	methodName string
	plan       Plan
	logger     utils.Logger
}

// InterceptorOption configures an Interceptor.
type InterceptorOption func(*Interceptor)

// WithLogger sets the logger used for advice failures during error handling.
func WithLogger(logger utils.Logger) InterceptorOption {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

// NewInterceptor creates an interceptor for one method.
func NewInterceptor(className, methodName string, plan Plan, opts ...InterceptorOption) *Interceptor {
	i := &Interceptor{className: className, methodName: methodName, plan: plan}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = utils.OrNull(i.logger)
	return i
}

// ClassName returns the target class.
func (i *Interceptor) ClassName() string { return i.className }

// MethodName returns the intercepted method.
func (i *Interceptor) MethodName() string { return i.methodName }

// Plan returns the advice plan.
func (i *Interceptor) Plan() Plan { return i.plan }

// Invoke runs one call.
func (i *Interceptor) Invoke(proxy interface{}, args *Arguments, body MethodBody) (interface{}, error) {
	if args == nil {
		args = NewArguments(nil)
	}

	if len(i.plan.Before) > 0 {
		jp := NewJoinPoint(proxy, i.className, i.methodName, args)
		for _, a := range i.plan.Before {
			if _, err := i.runAdvice(a, jp); err != nil {
				return nil, err
			}
		}
	}

	afterInvoked := false
	result, err := i.proceed(proxy, args, body)
	if err == nil {
		if err = i.afterSuccess(proxy, args, result, &afterInvoked); err == nil {
			return result, nil
		}
	}

	return nil, i.afterFailure(proxy, args, err, afterInvoked)
}

func (i *Interceptor) proceed(proxy interface{}, args *Arguments, body MethodBody) (interface{}, error) {
	if len(i.plan.Around) == 0 {
		return body(args)
	}
	chain := NewAdviceChain(i.plan.Around, body)
	jp := NewJoinPoint(proxy, i.className, i.methodName, args).withChain(chain)
	return chain.Proceed(jp)
}

func (i *Interceptor) afterSuccess(proxy interface{}, args *Arguments, result interface{}, afterInvoked *bool) error {
	if len(i.plan.AfterReturning) > 0 {
		jp := NewJoinPoint(proxy, i.className, i.methodName, args).withResult(result)
		for _, a := range i.plan.AfterReturning {
			if _, err := i.runAdvice(a, jp); err != nil {
				return err
			}
		}
	}
	if len(i.plan.After) > 0 {
		*afterInvoked = true
		jp := NewJoinPoint(proxy, i.className, i.methodName, args).withResult(result)
		for _, a := range i.plan.After {
			if _, err := i.runAdvice(a, jp); err != nil {
				return err
			}
		}
	}
	return nil
}

// afterFailure routes cause through the after throwing and after advices. It
// returns cause itself unless an advice fails too; the advice errors are then
// joined after cause, so errors.Is still finds it.
func (i *Interceptor) afterFailure(proxy interface{}, args *Arguments, cause error, afterInvoked bool) error {
	var adviceErrs []error
	if len(i.plan.AfterThrowing) > 0 {
		jp := NewJoinPoint(proxy, i.className, i.methodName, args).withError(cause)
		for _, a := range i.plan.AfterThrowing {
			if _, err := i.runAdvice(a, jp); err != nil {
				i.logger.Warn("after throwing advice %s for %s::%s failed: %v", a.Name, i.className, i.methodName, err)
				adviceErrs = append(adviceErrs, err)
			}
		}
	}
	if len(i.plan.After) > 0 && !afterInvoked {
		jp := NewJoinPoint(proxy, i.className, i.methodName, args).withError(cause)
		for _, a := range i.plan.After {
			if _, err := i.runAdvice(a, jp); err != nil {
				i.logger.Warn("after advice %s for %s::%s failed: %v", a.Name, i.className, i.methodName, err)
				adviceErrs = append(adviceErrs, err)
			}
		}
	}
	if len(adviceErrs) == 0 {
		return cause
	}
	return errors.Join(append([]error{cause}, adviceErrs...)...)
}

func (i *Interceptor) runAdvice(a Advice, jp *JoinPoint) (interface{}, error) {
	ok, err := a.applies(jp)
	if err != nil || !ok {
		return nil, err
	}
	return a.Func(jp)
}

// ArgumentMemo keeps the arguments a constructor was called with.
type ArgumentMemo struct {
	mu   sync.Mutex
	args *Arguments
}

// Store remembers a copy of args.
func (m *ArgumentMemo) Store(args *Arguments) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.args = args.Clone()
}

// Load returns a copy of the stored arguments.
func (m *ArgumentMemo) Load() (*Arguments, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.args == nil {
		return nil, false
	}
	return m.args.Clone(), true
}

// InvokeConstructor runs a constructor call and memoizes its arguments.
func (i *Interceptor) InvokeConstructor(proxy interface{}, args *Arguments, body MethodBody, memo *ArgumentMemo) (interface{}, error) {
	if args == nil {
		args = NewArguments(nil)
	}
	if memo != nil {
		memo.Store(args)
	}
	return i.Invoke(proxy, args, body)
}

// Reconstruct re-runs a constructor with memoized arguments, for objects
// restored from storage.
func (i *Interceptor) Reconstruct(proxy interface{}, body MethodBody, memo *ArgumentMemo) (interface{}, error) {
	args, ok := memo.Load()
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound,
			"no memoized constructor arguments for %s", i.className)
	}
	return i.Invoke(proxy, args, body)
}
