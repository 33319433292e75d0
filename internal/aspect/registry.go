package aspect

import (
	"sort"
	"sync"

	"github.com/aop-weaver/internal/dispatch"
	"github.com/aop-weaver/internal/metadata"
	"github.com/aop-weaver/internal/pointcut"
	apperrors "github.com/aop-weaver/pkg/errors"
)

func methodKey(className, methodName string) string {
	return metadata.NormalizeName(className) + "->" + methodName
}

// PointcutRegistry holds the named pointcuts of all aspects. It resolves
// pointcut references for the parser.
type PointcutRegistry struct {
	mu        sync.RWMutex
	pointcuts map[string]*pointcut.Pointcut
}

// NewPointcutRegistry creates an empty registry.
func NewPointcutRegistry() *PointcutRegistry {
	return &PointcutRegistry{pointcuts: make(map[string]*pointcut.Pointcut)}
}

// Register adds named pointcuts. Either all of them are added or, when one
// is already known, none.
func (r *PointcutRegistry) Register(pointcuts ...*pointcut.Pointcut) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := make(map[string]*pointcut.Pointcut, len(pointcuts))
	for _, p := range pointcuts {
		key := methodKey(p.AspectClassName(), p.PointcutMethodName())
		_, exists := r.pointcuts[key]
		if _, dup := added[key]; exists || dup {
			return apperrors.Newf(apperrors.CodeAspectDefinitionError, "pointcut %s is declared twice", key)
		}
		added[key] = p
	}
	for key, p := range added {
		r.pointcuts[key] = p
	}
	return nil
}

// FindPointcut implements pointcut.PointcutResolver.
func (r *PointcutRegistry) FindPointcut(aspectClassName, pointcutMethodName string) (*pointcut.Pointcut, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pointcuts[methodKey(aspectClassName, pointcutMethodName)]
	return p, ok
}

// Names returns the registered pointcuts as Aspect->method, sorted.
func (r *PointcutRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pointcuts))
	for k := range r.pointcuts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// AdviceRegistry maps aspect methods to their implementations.
type AdviceRegistry struct {
	mu      sync.RWMutex
	advices map[string]dispatch.AdviceFunc
}

// NewAdviceRegistry creates an empty registry.
func NewAdviceRegistry() *AdviceRegistry {
	return &AdviceRegistry{advices: make(map[string]dispatch.AdviceFunc)}
}

// Register binds an implementation to aspectClassName::methodName.
func (r *AdviceRegistry) Register(aspectClassName, methodName string, fn dispatch.AdviceFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advices[methodKey(aspectClassName, methodName)] = fn
}

// Resolve returns the implementation of an advice.
func (r *AdviceRegistry) Resolve(a Advice) (dispatch.AdviceFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.advices[methodKey(a.AspectClassName, a.MethodName)]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeResolutionError, "no implementation registered for advice %s", a)
	}
	return fn, nil
}

// FilterConstructor creates a custom filter instance.
type FilterConstructor func() interface{}

// FilterRegistry resolves filter(...) names. Each constructor runs at most
// once.
type FilterRegistry struct {
	mu           sync.Mutex
	constructors map[string]FilterConstructor
	instances    map[string]interface{}
}

// NewFilterRegistry creates an empty registry.
func NewFilterRegistry() *FilterRegistry {
	return &FilterRegistry{
		constructors: make(map[string]FilterConstructor),
		instances:    make(map[string]interface{}),
	}
}

// Register adds a named filter constructor.
func (r *FilterRegistry) Register(name string, constructor FilterConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = metadata.NormalizeName(name)
	r.constructors[name] = constructor
	delete(r.instances, name)
}

// ResolveFilter implements pointcut.FilterResolver.
func (r *FilterRegistry) ResolveFilter(name string) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = metadata.NormalizeName(name)
	if inst, ok := r.instances[name]; ok {
		return inst, nil
	}
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "no filter registered as %s", name)
	}
	inst := ctor()
	r.instances[name] = inst
	return inst, nil
}
