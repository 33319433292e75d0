// Package weaver decides which classes need proxies and what every proxied
// method must do at call time.
package weaver

import (
	"sort"

	"github.com/aop-weaver/internal/aspect"
	"github.com/aop-weaver/internal/pointcut"
)

// AdviceMatch is one advice applied to a method. DeclaringClassName is the
// class declaring the advised method, or the introduced interface for
// introduced methods. ExpressionID names the compiled runtime expression and
// is empty when the advice always applies.
type AdviceMatch struct {
	Advice             aspect.Advice               `json:"advice"`
	DeclaringClassName string                      `json:"declaringClass"`
	RuntimeExpression  *pointcut.RuntimeExpression `json:"-"`
	ExpressionID       string                      `json:"expression,omitempty"`
}

// MethodPlan lists the advice of one method grouped by kind, in matching
// order.
type MethodPlan struct {
	Name               string                              `json:"name"`
	DeclaringClassName string                              `json:"declaringClass"`
	Introduced         bool                                `json:"introduced,omitempty"`
	Constructor        bool                                `json:"constructor,omitempty"`
	Advices            map[aspect.AdviceKind][]AdviceMatch `json:"advices"`
}

func newMethodPlan(name, declaringClassName string) *MethodPlan {
	return &MethodPlan{
		Name:               name,
		DeclaringClassName: declaringClassName,
		Advices:            make(map[aspect.AdviceKind][]AdviceMatch),
	}
}

func (m *MethodPlan) add(match AdviceMatch) {
	m.Advices[match.Advice.Kind] = append(m.Advices[match.Advice.Kind], match)
}

// IsEmpty reports whether no advice applies to the method.
func (m *MethodPlan) IsEmpty() bool {
	for _, matches := range m.Advices {
		if len(matches) > 0 {
			return false
		}
	}
	return true
}

// Count returns the number of advices of a kind.
func (m *MethodPlan) Count(kind aspect.AdviceKind) int {
	return len(m.Advices[kind])
}

// AdviceNames returns advice names per kind, for reports.
func (m *MethodPlan) AdviceNames() map[aspect.AdviceKind][]string {
	out := make(map[aspect.AdviceKind][]string, len(m.Advices))
	for kind, matches := range m.Advices {
		for _, match := range matches {
			out[kind] = append(out[kind], match.Advice.String())
		}
	}
	return out
}

// IntroducedInterface is an interface added to a proxy class.
type IntroducedInterface struct {
	Name            string `json:"name"`
	AspectClassName string `json:"aspect"`
}

// IntroducedProperty is a property added to a proxy class.
type IntroducedProperty struct {
	Name            string `json:"name"`
	AspectClassName string `json:"aspect"`
}

// ProxyClass is the weaving outcome for one target class that needs a proxy.
type ProxyClass struct {
	ClassName  string                `json:"class"`
	Methods    []*MethodPlan         `json:"methods,omitempty"`
	Interfaces []IntroducedInterface `json:"interfaces,omitempty"`
	Properties []IntroducedProperty  `json:"properties,omitempty"`
}

// IsEmpty reports whether the class can be used without a proxy.
func (p *ProxyClass) IsEmpty() bool {
	return len(p.Methods) == 0 && len(p.Interfaces) == 0 && len(p.Properties) == 0
}

// Method returns the plan of a method.
func (p *ProxyClass) Method(name string) (*MethodPlan, bool) {
	for _, m := range p.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// InterfaceNames returns the introduced interface names.
func (p *ProxyClass) InterfaceNames() []string {
	names := make([]string, len(p.Interfaces))
	for i, iface := range p.Interfaces {
		names[i] = iface.Name
	}
	return names
}

// TargetError is a weaving failure of one target class.
type TargetError struct {
	ClassName string
	Err       error
}

func (e *TargetError) Error() string {
	return "weaving " + e.ClassName + ": " + e.Err.Error()
}

func (e *TargetError) Unwrap() error {
	return e.Err
}

// Result collects the outcome of a weaving pass.
type Result struct {
	Proxies   []*ProxyClass
	Unproxied []string // candidates that need no proxy
	Failures  []*TargetError
}

// Proxy returns the proxy built for a class.
func (r *Result) Proxy(className string) (*ProxyClass, bool) {
	for _, p := range r.Proxies {
		if p.ClassName == className {
			return p, true
		}
	}
	return nil, false
}

// IsUnproxied reports whether the class was found to need no proxy.
func (r *Result) IsUnproxied(className string) bool {
	i := sort.SearchStrings(r.Unproxied, className)
	return i < len(r.Unproxied) && r.Unproxied[i] == className
}

func (r *Result) sort() {
	sort.Slice(r.Proxies, func(i, j int) bool { return r.Proxies[i].ClassName < r.Proxies[j].ClassName })
	sort.Strings(r.Unproxied)
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].ClassName < r.Failures[j].ClassName })
}
