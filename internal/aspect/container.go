package aspect

import (
	"github.com/aop-weaver/internal/pointcut"
)

// Container groups everything one aspect class declares.
type Container struct {
	className              string
	advisors               []*Advisor
	pointcuts              []*pointcut.Pointcut
	interfaceIntroductions []*Introduction
	propertyIntroductions  []*Introduction
	candidates             *pointcut.ClassNameIndex
}

// NewContainer creates an empty container for an aspect class.
func NewContainer(className string) *Container {
	return &Container{className: className}
}

func (c *Container) ClassName() string                      { return c.className }
func (c *Container) Advisors() []*Advisor                   { return c.advisors }
func (c *Container) Pointcuts() []*pointcut.Pointcut        { return c.pointcuts }
func (c *Container) InterfaceIntroductions() []*Introduction { return c.interfaceIntroductions }
func (c *Container) PropertyIntroductions() []*Introduction  { return c.propertyIntroductions }

func (c *Container) AddAdvisor(a *Advisor)                    { c.advisors = append(c.advisors, a) }
func (c *Container) AddPointcut(p *pointcut.Pointcut)         { c.pointcuts = append(c.pointcuts, p) }
func (c *Container) AddInterfaceIntroduction(i *Introduction) { c.interfaceIntroductions = append(c.interfaceIntroductions, i) }
func (c *Container) AddPropertyIntroduction(i *Introduction)  { c.propertyIntroductions = append(c.propertyIntroductions, i) }

// IsEmpty reports whether the aspect declares nothing.
func (c *Container) IsEmpty() bool {
	return len(c.advisors) == 0 && len(c.pointcuts) == 0 &&
		len(c.interfaceIntroductions) == 0 && len(c.propertyIntroductions) == 0
}

// ReduceTargetClassNames computes and caches the classes this aspect may
// affect: the union of the reductions of all advisors and introductions,
// limited to index. The cached index is read-only afterwards.
func (c *Container) ReduceTargetClassNames(index *pointcut.ClassNameIndex) *pointcut.ClassNameIndex {
	result := pointcut.NewClassNameIndex()
	for _, a := range c.advisors {
		result = result.Union(a.Pointcut.ReduceTargetClassNames(index))
	}
	for _, i := range c.interfaceIntroductions {
		result = result.Union(i.Pointcut.ReduceTargetClassNames(index))
	}
	for _, i := range c.propertyIntroductions {
		result = result.Union(i.Pointcut.ReduceTargetClassNames(index))
	}
	c.candidates = result.Intersect(index)
	return c.candidates
}

// CachedTargetClassNameCandidates returns the index computed by
// ReduceTargetClassNames, or nil before it ran.
func (c *Container) CachedTargetClassNameCandidates() *pointcut.ClassNameIndex {
	return c.candidates
}

// MayAffect reports whether the class is in the cached candidates. Without a
// cached index every class is a candidate.
func (c *Container) MayAffect(className string) bool {
	return c.candidates == nil || c.candidates.HasName(className)
}
