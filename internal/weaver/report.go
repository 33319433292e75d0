package weaver

import (
	"time"

	"github.com/aop-weaver/internal/aspect"
	apperrors "github.com/aop-weaver/pkg/errors"
	"github.com/aop-weaver/pkg/writer"
)

// Report is the serializable summary of a weaving pass.
type Report struct {
	GeneratedAt time.Time       `json:"generatedAt" yaml:"generatedAt"`
	Aspects     []string        `json:"aspects" yaml:"aspects"`
	Summary     ReportSummary   `json:"summary" yaml:"summary"`
	Classes     []ClassReport   `json:"classes" yaml:"classes"`
	Failures    []FailureReport `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// ReportSummary counts the outcomes of a pass.
type ReportSummary struct {
	Proxied   int `json:"proxied" yaml:"proxied"`
	Unproxied int `json:"unproxied" yaml:"unproxied"`
	Failed    int `json:"failed" yaml:"failed"`
	Methods   int `json:"methods" yaml:"methods"`
}

// ClassReport describes one candidate class.
type ClassReport struct {
	Class      string         `json:"class" yaml:"class"`
	Proxied    bool           `json:"proxied" yaml:"proxied"`
	Interfaces []string       `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Properties []string       `json:"properties,omitempty" yaml:"properties,omitempty"`
	Methods    []MethodReport `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// MethodReport lists the advice names of one method per kind.
type MethodReport struct {
	Name           string              `json:"name" yaml:"name"`
	DeclaringClass string              `json:"declaringClass" yaml:"declaringClass"`
	Introduced     bool                `json:"introduced,omitempty" yaml:"introduced,omitempty"`
	Advices        map[string][]string `json:"advices" yaml:"advices"`
	Expressions    []string            `json:"expressions,omitempty" yaml:"expressions,omitempty"`
}

// FailureReport is one target that could not be woven.
type FailureReport struct {
	Class   string `json:"class" yaml:"class"`
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// NewReport summarizes result.
func NewReport(result *Result, aspectClassNames []string, generatedAt time.Time) *Report {
	r := &Report{
		GeneratedAt: generatedAt,
		Aspects:     aspectClassNames,
		Classes:     make([]ClassReport, 0, len(result.Proxies)+len(result.Unproxied)),
	}

	for _, p := range result.Proxies {
		cr := ClassReport{Class: p.ClassName, Proxied: true, Interfaces: p.InterfaceNames()}
		for _, prop := range p.Properties {
			cr.Properties = append(cr.Properties, prop.Name)
		}
		for _, m := range p.Methods {
			cr.Methods = append(cr.Methods, methodReport(m))
		}
		r.Summary.Methods += len(p.Methods)
		r.Classes = append(r.Classes, cr)
	}
	for _, name := range result.Unproxied {
		r.Classes = append(r.Classes, ClassReport{Class: name})
	}
	for _, f := range result.Failures {
		r.Failures = append(r.Failures, FailureReport{
			Class:   f.ClassName,
			Code:    apperrors.GetErrorCode(f.Err),
			Message: f.Err.Error(),
		})
	}

	r.Summary.Proxied = len(result.Proxies)
	r.Summary.Unproxied = len(result.Unproxied)
	r.Summary.Failed = len(result.Failures)
	return r
}

func methodReport(m *MethodPlan) MethodReport {
	mr := MethodReport{
		Name:           m.Name,
		DeclaringClass: m.DeclaringClassName,
		Introduced:     m.Introduced,
		Advices:        make(map[string][]string),
	}
	for kind, names := range m.AdviceNames() {
		mr.Advices[string(kind)] = names
	}
	for _, kind := range aspect.AdviceKinds {
		for _, match := range m.Advices[kind] {
			if match.ExpressionID != "" {
				mr.Expressions = append(mr.Expressions, match.ExpressionID)
			}
		}
	}
	return mr
}

// WriteReport writes the report to path in the format its suffix selects.
func WriteReport(report *Report, path string) error {
	w, err := writer.ForPath[*Report](path)
	if err != nil {
		return err
	}
	return writer.WriteToFile(w, report, path)
}

// EncodeReport encodes the report in the given format.
func EncodeReport(report *Report, format string) ([]byte, error) {
	w, err := writer.ForFormat[*Report](format)
	if err != nil {
		return nil, err
	}
	return writer.Bytes(w, report)
}
