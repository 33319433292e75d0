package weaver

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aop-weaver/internal/aspect"
	"github.com/aop-weaver/internal/metadata"
	"github.com/aop-weaver/internal/pointcut"
	apperrors "github.com/aop-weaver/pkg/errors"
	"github.com/aop-weaver/pkg/filter"
	"github.com/aop-weaver/pkg/parallel"
	"github.com/aop-weaver/pkg/telemetry"
	"github.com/aop-weaver/pkg/utils"
)

// ExpressionCompiler compiles the runtime conditions of matched advice.
type ExpressionCompiler interface {
	Compile(ctx context.Context, rt *pointcut.RuntimeExpression) (string, error)
}

// Options configures a ProxyClassBuilder. A nil Namespaces filter excludes
// the default infrastructure namespaces only.
type Options struct {
	Metadata   *metadata.Registry
	Aspects    []*aspect.Container
	Namespaces *filter.NamespaceFilter
	Compiler   ExpressionCompiler
	Parallel   bool
	Workers    int
	Logger     utils.Logger
}

// ProxyClassBuilder matches aspects against the class universe and builds a
// ProxyClass for every class that needs one.
type ProxyClassBuilder struct {
	metadata   *metadata.Registry
	aspects    []*aspect.Container
	namespaces *filter.NamespaceFilter
	compiler   ExpressionCompiler
	parallel   bool
	workers    int
	logger     utils.Logger
}

// NewProxyClassBuilder creates a builder. Aspects are applied in the given
// order.
func NewProxyClassBuilder(opts Options) *ProxyClassBuilder {
	namespaces := opts.Namespaces
	if namespaces == nil {
		namespaces = filter.NewNamespaceFilter()
	}
	return &ProxyClassBuilder{
		metadata:   opts.Metadata,
		aspects:    opts.Aspects,
		namespaces: namespaces,
		compiler:   opts.Compiler,
		parallel:   opts.Parallel,
		workers:    opts.Workers,
		logger:     utils.OrNull(opts.Logger),
	}
}

// CandidateClassNames returns the classes that may be proxied: no
// interfaces, aspects, final classes or infrastructure classes.
func (b *ProxyClassBuilder) CandidateClassNames() []string {
	var names []string
	for _, name := range b.metadata.ClassNames() {
		class, _ := b.metadata.Class(name)
		switch {
		case class.IsInterface(), class.Final:
			continue
		case class.HasAnnotation(aspect.AnnotationAspect):
			continue
		case !b.namespaces.IsAdvisable(name):
			continue
		}
		names = append(names, name)
	}
	return names
}

// Build runs one weaving pass. Failing targets are reported in
// Result.Failures and joined into the returned error; the other targets are
// still woven.
func (b *ProxyClassBuilder) Build(ctx context.Context) (*Result, error) {
	candidates := pointcut.NewClassNameIndex(b.CandidateClassNames()...)

	// Candidate indices are computed once, before any worker starts, and only
	// read afterwards.
	reach := pointcut.NewClassNameIndex()
	for _, c := range b.aspects {
		reach = reach.Union(c.ReduceTargetClassNames(candidates))
	}

	result := &Result{}
	var targets []string
	for _, name := range candidates.Names() {
		if reach.HasName(name) {
			targets = append(targets, name)
			continue
		}
		result.Unproxied = append(result.Unproxied, name)
	}
	b.logger.Debug("Weaving %d of %d candidate classes with %d aspects", len(targets), candidates.Len(), len(b.aspects))

	if b.parallel && b.workers > 1 && len(targets) > 1 {
		b.buildParallel(ctx, targets, result)
	} else {
		ids := pointcut.NewQueryIDs(0)
		for _, name := range targets {
			if err := ctx.Err(); err != nil {
				result.Failures = append(result.Failures, &TargetError{ClassName: name, Err: err})
				continue
			}
			proxy, err := b.buildTarget(ctx, name, ids)
			b.collect(result, name, proxy, err)
		}
	}

	result.sort()
	b.logger.Info("Woven %d proxy classes, %d classes unproxied, %d failures",
		len(result.Proxies), len(result.Unproxied), len(result.Failures))

	errs := make([]error, len(result.Failures))
	for i, f := range result.Failures {
		errs[i] = f
	}
	return result, errors.Join(errs...)
}

// buildParallel weaves targets on a worker pool. Each worker draws query ids
// from its own namespace.
func (b *ProxyClassBuilder) buildParallel(ctx context.Context, targets []string, result *Result) {
	cfg := parallel.DefaultPoolConfig().WithWorkers(b.workers)
	pool := parallel.NewWorkerPool[string, *ProxyClass](cfg)

	ids := make([]*pointcut.QueryIDs, pool.Workers())
	for i := range ids {
		ids[i] = pointcut.NewQueryIDs(uint32(i + 1))
	}

	results := pool.ExecuteFunc(ctx, targets, func(ctx context.Context, workerID int, className string) (*ProxyClass, error) {
		return b.buildTarget(ctx, className, ids[workerID])
	})
	for _, r := range results {
		b.collect(result, r.Input, r.Result, r.Error)
	}
}

func (b *ProxyClassBuilder) collect(result *Result, className string, proxy *ProxyClass, err error) {
	switch {
	case err != nil:
		b.logger.Error("Failed to weave %s: %v", className, err)
		result.Failures = append(result.Failures, &TargetError{ClassName: className, Err: err})
	case proxy == nil || proxy.IsEmpty():
		b.logger.Debug("Class %s needs no proxy", className)
		result.Unproxied = append(result.Unproxied, className)
	default:
		b.logger.Debug("Built proxy for %s with %d methods", className, len(proxy.Methods))
		result.Proxies = append(result.Proxies, proxy)
	}
}

func (b *ProxyClassBuilder) buildTarget(ctx context.Context, className string, ids *pointcut.QueryIDs) (*ProxyClass, error) {
	ctx, span := telemetry.StartSpan(ctx, "weaver.target", attribute.String("weaver.class", className))
	defer span.End()

	proxy, err := b.BuildProxyClass(ctx, className, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return proxy, err
}

type introducedMethod struct {
	name               string
	declaringInterface string
	interfaceName      string
	aspectClassName    string
}

// BuildProxyClass weaves one class. The returned ProxyClass is empty when
// the class needs no proxy.
func (b *ProxyClassBuilder) BuildProxyClass(ctx context.Context, className string, ids *pointcut.QueryIDs) (*ProxyClass, error) {
	className = metadata.NormalizeName(className)
	if !b.metadata.HasClass(className) {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "class %s is unknown", className)
	}
	proxy := &ProxyClass{ClassName: className}

	introduced, err := b.introduceInterfaces(proxy, ids)
	if err != nil {
		return nil, err
	}
	if err := b.introduceProperties(proxy, ids); err != nil {
		return nil, err
	}

	for _, ref := range b.metadata.Methods(className) {
		m := ref.Method
		if m.Final || m.Static {
			continue
		}
		plan := newMethodPlan(m.Name, ref.DeclaringClass)
		plan.Constructor = m.Constructor
		if err := b.adviseMethod(ctx, plan, className, false, ids); err != nil {
			return nil, err
		}
		if !plan.IsEmpty() {
			proxy.Methods = append(proxy.Methods, plan)
		}
	}

	for _, im := range introduced {
		plan := newMethodPlan(im.name, im.declaringInterface)
		plan.Introduced = true
		if err := b.adviseMethod(ctx, plan, className, true, ids); err != nil {
			return nil, err
		}
		if plan.IsEmpty() {
			return nil, apperrors.Newf(apperrors.CodeVoidImplementation,
				"method %s of interface %s introduced into %s by %s has no implementation, an around advice must provide one",
				im.name, im.interfaceName, className, im.aspectClassName)
		}
		proxy.Methods = append(proxy.Methods, plan)
	}
	return proxy, nil
}

// introduceInterfaces adds the interfaces introduced into the proxy's class
// and returns the methods they bring that the class does not declare. Two
// aspects bringing the same interface or the same method name conflict; only
// an interface the class already implements is skipped.
func (b *ProxyClassBuilder) introduceInterfaces(proxy *ProxyClass, ids *pointcut.QueryIDs) ([]introducedMethod, error) {
	var methods []introducedMethod
	byName := make(map[string]introducedMethod)
	introducedBy := make(map[string]string)

	for _, c := range b.aspects {
		if !c.MayAffect(proxy.ClassName) {
			continue
		}
		for _, intro := range c.InterfaceIntroductions() {
			ok, err := intro.Pointcut.Matches(proxy.ClassName, "", "", ids.Next())
			if err != nil {
				return nil, fmt.Errorf("failed to match introduction of %s by %s: %w", intro.Name, c.ClassName(), err)
			}
			if !ok || b.metadata.ImplementsInterface(proxy.ClassName, intro.Name) {
				continue
			}
			if prev, seen := introducedBy[intro.Name]; seen {
				if prev == c.ClassName() {
					continue
				}
				return nil, introductionConflict(&apperrors.IntroductionConflictError{
					TargetClassName: proxy.ClassName,
					Interfaces:      []string{intro.Name},
					Aspects:         []string{prev, c.ClassName()},
				})
			}
			introducedBy[intro.Name] = c.ClassName()
			proxy.Interfaces = append(proxy.Interfaces, IntroducedInterface{Name: intro.Name, AspectClassName: c.ClassName()})

			for _, ref := range b.metadata.Methods(intro.Name) {
				if ref.Method.Static {
					continue
				}
				if _, declared := b.metadata.Method(proxy.ClassName, ref.Method.Name); declared {
					continue
				}
				im := introducedMethod{
					name:               ref.Method.Name,
					declaringInterface: ref.DeclaringClass,
					interfaceName:      intro.Name,
					aspectClassName:    c.ClassName(),
				}
				prev, seen := byName[im.name]
				if !seen {
					byName[im.name] = im
					methods = append(methods, im)
					continue
				}
				// Interfaces of one aspect extending the same parent share its methods.
				if prev.aspectClassName == im.aspectClassName && prev.declaringInterface == im.declaringInterface {
					continue
				}
				return nil, introductionConflict(&apperrors.IntroductionConflictError{
					TargetClassName: proxy.ClassName,
					MethodName:      im.name,
					Interfaces:      []string{prev.interfaceName, im.interfaceName},
					Aspects:         []string{prev.aspectClassName, im.aspectClassName},
				})
			}
		}
	}
	return methods, nil
}

func introductionConflict(detail *apperrors.IntroductionConflictError) error {
	return apperrors.Wrap(apperrors.CodeIntroductionConflict, "conflicting interface introductions", detail)
}

func (b *ProxyClassBuilder) introduceProperties(proxy *ProxyClass, ids *pointcut.QueryIDs) error {
	for _, c := range b.aspects {
		if !c.MayAffect(proxy.ClassName) {
			continue
		}
		for _, intro := range c.PropertyIntroductions() {
			ok, err := intro.Pointcut.Matches(proxy.ClassName, "", "", ids.Next())
			if err != nil {
				return fmt.Errorf("failed to match introduction of property %s by %s: %w", intro.Name, c.ClassName(), err)
			}
			if !ok {
				continue
			}
			if containsProperty(proxy.Properties, intro.Name) {
				b.logger.Warn("Property %s is introduced into %s more than once, keeping the first introduction", intro.Name, proxy.ClassName)
				continue
			}
			proxy.Properties = append(proxy.Properties, IntroducedProperty{Name: intro.Name, AspectClassName: c.ClassName()})
		}
	}
	return nil
}

// adviseMethod matches every advisor against one method. Introduced methods
// are matched even for aspects whose candidate index does not hold the
// class, since the index was computed from the class without its
// introductions.
func (b *ProxyClassBuilder) adviseMethod(ctx context.Context, plan *MethodPlan, className string, introduced bool, ids *pointcut.QueryIDs) error {
	for _, c := range b.aspects {
		if !introduced && !c.MayAffect(className) {
			continue
		}
		for _, advisor := range c.Advisors() {
			ok, rt, err := advisor.Pointcut.MatchesWithRuntime(className, plan.Name, plan.DeclaringClassName, ids.Next())
			if err != nil {
				return fmt.Errorf("failed to match %s advice %s against %s::%s: %w",
					advisor.Advice.Kind, advisor.Advice, className, plan.Name, err)
			}
			if !ok {
				continue
			}
			match := AdviceMatch{Advice: advisor.Advice, DeclaringClassName: plan.DeclaringClassName}
			if !rt.IsEmpty() {
				if b.compiler == nil {
					return apperrors.Newf(apperrors.CodeExpressionError,
						"advice %s has runtime conditions on %s::%s but no expression compiler is configured",
						advisor.Advice, className, plan.Name)
				}
				id, err := b.compiler.Compile(ctx, rt)
				if err != nil {
					return err
				}
				match.RuntimeExpression = rt
				match.ExpressionID = id
			}
			plan.add(match)
		}
	}
	return nil
}

func containsProperty(list []IntroducedProperty, name string) bool {
	for _, p := range list {
		if p.Name == name {
			return true
		}
	}
	return false
}
