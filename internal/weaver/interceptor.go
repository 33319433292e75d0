package weaver

import (
	"github.com/aop-weaver/internal/aspect"
	"github.com/aop-weaver/internal/dispatch"
	apperrors "github.com/aop-weaver/pkg/errors"
	"github.com/aop-weaver/pkg/utils"
)

// AdviceResolver finds the implementation of an advice.
type AdviceResolver interface {
	Resolve(a aspect.Advice) (dispatch.AdviceFunc, error)
}

// GateProvider turns a compiled runtime expression into a call-time gate.
type GateProvider interface {
	Gate(id string) dispatch.Gate
}

// InterceptorBuilder turns method plans into dispatch interceptors.
type InterceptorBuilder struct {
	advices AdviceResolver
	gates   GateProvider
	logger  utils.Logger
}

// NewInterceptorBuilder creates a builder. gates may be nil when no plan
// carries runtime expressions.
func NewInterceptorBuilder(advices AdviceResolver, gates GateProvider, logger utils.Logger) *InterceptorBuilder {
	return &InterceptorBuilder{
		advices: advices,
		gates:   gates,
		logger:  utils.OrNull(logger),
	}
}

// BuildPlan resolves every advice of a method plan.
func (b *InterceptorBuilder) BuildPlan(m *MethodPlan) (dispatch.Plan, error) {
	var plan dispatch.Plan
	groups := map[aspect.AdviceKind]*[]dispatch.Advice{
		aspect.KindBefore:         &plan.Before,
		aspect.KindAround:         &plan.Around,
		aspect.KindAfterReturning: &plan.AfterReturning,
		aspect.KindAfterThrowing:  &plan.AfterThrowing,
		aspect.KindAfter:          &plan.After,
	}
	for _, kind := range aspect.AdviceKinds {
		for _, match := range m.Advices[kind] {
			a, err := b.resolve(match)
			if err != nil {
				return dispatch.Plan{}, err
			}
			*groups[kind] = append(*groups[kind], a)
		}
	}
	return plan, nil
}

func (b *InterceptorBuilder) resolve(match AdviceMatch) (dispatch.Advice, error) {
	fn, err := b.advices.Resolve(match.Advice)
	if err != nil {
		return dispatch.Advice{}, err
	}
	a := dispatch.Advice{Name: match.Advice.String(), Func: fn}
	if match.ExpressionID != "" {
		if b.gates == nil {
			return dispatch.Advice{}, apperrors.Newf(apperrors.CodeUnknownExpression,
				"advice %s needs runtime expression %s but no evaluator is available", match.Advice, match.ExpressionID)
		}
		a.Gate = b.gates.Gate(match.ExpressionID)
	}
	return a, nil
}

// Build creates the interceptor of one method of a class.
func (b *InterceptorBuilder) Build(className string, m *MethodPlan) (*dispatch.Interceptor, error) {
	plan, err := b.BuildPlan(m)
	if err != nil {
		return nil, err
	}
	return dispatch.NewInterceptor(className, m.Name, plan, dispatch.WithLogger(b.logger)), nil
}

// NewProxy builds the interceptors of a proxy class and binds them to one
// instance.
func (b *InterceptorBuilder) NewProxy(class *ProxyClass, instance interface{}) (*Proxy, error) {
	p := &Proxy{
		class:        class,
		instance:     instance,
		interceptors: make(map[string]*dispatch.Interceptor, len(class.Methods)),
		constructors: make(map[string]bool),
	}
	for _, m := range class.Methods {
		i, err := b.Build(class.ClassName, m)
		if err != nil {
			return nil, err
		}
		p.interceptors[m.Name] = i
		if m.Constructor {
			p.constructors[m.Name] = true
		}
	}
	return p, nil
}

// Proxy dispatches calls on one woven instance. Methods without a plan call
// their body directly.
type Proxy struct {
	class        *ProxyClass
	instance     interface{}
	interceptors map[string]*dispatch.Interceptor
	constructors map[string]bool
	memo         dispatch.ArgumentMemo
}

// Class returns the proxy class.
func (p *Proxy) Class() *ProxyClass { return p.class }

// Instance returns the object the proxy stands for.
func (p *Proxy) Instance() interface{} { return p.instance }

// Intercepts reports whether calls to the method run advice.
func (p *Proxy) Intercepts(method string) bool {
	_, ok := p.interceptors[method]
	return ok
}

// Call invokes a method through its interceptor. Constructor arguments are
// memoized for Wakeup.
func (p *Proxy) Call(method string, args *dispatch.Arguments, body dispatch.MethodBody) (interface{}, error) {
	i, ok := p.interceptors[method]
	if !ok {
		if args == nil {
			args = dispatch.NewArguments(nil)
		}
		return body(args)
	}
	if p.constructors[method] {
		return i.InvokeConstructor(p.instance, args, body, &p.memo)
	}
	return i.Invoke(p.instance, args, body)
}

// Wakeup re-runs an intercepted constructor with the arguments of its last
// call, for instances restored from storage.
func (p *Proxy) Wakeup(method string, body dispatch.MethodBody) (interface{}, error) {
	i, ok := p.interceptors[method]
	if !ok || !p.constructors[method] {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "%s has no intercepted constructor %s", p.class.ClassName, method)
	}
	return i.Reconstruct(p.instance, body, &p.memo)
}
