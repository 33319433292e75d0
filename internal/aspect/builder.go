package aspect

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aop-weaver/internal/metadata"
	"github.com/aop-weaver/internal/pointcut"
	"github.com/aop-weaver/pkg/config"
	apperrors "github.com/aop-weaver/pkg/errors"
	"github.com/aop-weaver/pkg/utils"
)

// BuilderOptions holds the collaborators of a Builder.
type BuilderOptions struct {
	Metadata *metadata.Registry
	Settings config.SettingsProvider
	Filters  pointcut.FilterResolver
	Logger   utils.Logger
}

// Builder creates aspect containers from annotated aspect classes. All
// containers built by one Builder share a PointcutRegistry, so aspects can
// reference each other's named pointcuts. An aspect that fails to build
// registers none of its pointcuts.
type Builder struct {
	metadata  *metadata.Registry
	parser    *pointcut.Parser
	pointcuts *PointcutRegistry
	logger    utils.Logger
}

// NewBuilder creates a builder.
func NewBuilder(opts BuilderOptions) *Builder {
	pointcuts := NewPointcutRegistry()
	logger := utils.OrNull(opts.Logger)
	return &Builder{
		metadata: opts.Metadata,
		parser: pointcut.NewParser(pointcut.ParserOptions{
			Reflection: opts.Metadata,
			Settings:   opts.Settings,
			Filters:    opts.Filters,
			Pointcuts:  pointcuts,
			Logger:     logger,
		}),
		pointcuts: pointcuts,
		logger:    logger,
	}
}

func (b *Builder) Pointcuts() *PointcutRegistry { return b.pointcuts }
func (b *Builder) Parser() *pointcut.Parser     { return b.parser }

// AspectClassNames returns the classes annotated as aspects, sorted.
func (b *Builder) AspectClassNames() []string {
	names := append([]string(nil), b.metadata.ClassNamesByAnnotation(AnnotationAspect)...)
	sort.Strings(names)
	return names
}

// BuildAll builds a container for every aspect class. An aspect that fails
// is left out; the failures are joined into the returned error.
func (b *Builder) BuildAll() ([]*Container, error) {
	var containers []*Container
	var errs []error
	for _, name := range b.AspectClassNames() {
		c, err := b.Build(name)
		if err != nil {
			b.logger.Error("Failed to build aspect %s: %v", name, err)
			errs = append(errs, err)
			continue
		}
		containers = append(containers, c)
	}
	return containers, errors.Join(errs...)
}

// Build scans one aspect class.
func (b *Builder) Build(className string) (*Container, error) {
	class, ok := b.metadata.Class(className)
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "aspect class %s is not known", className)
	}

	c := NewContainer(class.Name)
	for _, ref := range b.metadata.Methods(class.Name) {
		if err := b.scanMethod(c, ref.Method); err != nil {
			return nil, err
		}
	}
	if err := b.scanIntroductions(c, class); err != nil {
		return nil, err
	}

	if c.IsEmpty() {
		return nil, apperrors.Newf(apperrors.CodeAspectDefinitionError,
			"the class %s is annotated as aspect but declares neither advices, pointcuts nor introductions", class.Name)
	}
	// References resolve at match time, so named pointcuts are only published
	// once the whole aspect is known to be valid.
	if err := b.pointcuts.Register(c.Pointcuts()...); err != nil {
		return nil, err
	}
	b.logger.Debug("Built aspect %s: %d advisors, %d pointcuts, %d introductions",
		class.Name, len(c.Advisors()), len(c.Pointcuts()),
		len(c.InterfaceIntroductions())+len(c.PropertyIntroductions()))
	return c, nil
}

func (b *Builder) scanMethod(c *Container, method *metadata.MethodMetadata) error {
	aspectName := c.ClassName()
	for _, ann := range method.Annotations {
		annotationType := metadata.NormalizeName(ann.Type)

		if annotationType == AnnotationPointcut {
			hint := SourceHint(aspectName, method.Name, "Pointcut")
			p, err := b.parsePointcut(ann.StringValue("expression"), hint, aspectName, method.Name)
			if err != nil {
				return err
			}
			c.AddPointcut(p)
			continue
		}

		kind, ok := KindForAnnotation(annotationType)
		if !ok {
			continue
		}
		hint := SourceHint(aspectName, method.Name, string(kind)+" advice")
		p, err := b.parsePointcut(ann.StringValue("pointcut"), hint, aspectName, "")
		if err != nil {
			return err
		}
		c.AddAdvisor(&Advisor{
			Advice:   Advice{Kind: kind, AspectClassName: aspectName, MethodName: method.Name},
			Pointcut: p,
		})
	}
	return nil
}

func (b *Builder) scanIntroductions(c *Container, class *metadata.ClassMetadata) error {
	for _, ann := range b.metadata.ClassAnnotations(class.Name, AnnotationIntroduce) {
		iface := metadata.NormalizeName(ann.StringValue("interface"))
		hint := SourceHint(class.Name, "", "Introduce")
		if iface == "" {
			return apperrors.Newf(apperrors.CodeAspectDefinitionError,
				"introduction in %s does not name an interface", hint)
		}
		if !b.metadata.IsInterface(iface) {
			return apperrors.Newf(apperrors.CodeResolutionError,
				"introduction in %s names %s, which is not a known interface", hint, iface)
		}
		p, err := b.parsePointcut(ann.StringValue("pointcut"), hint, class.Name, "")
		if err != nil {
			return err
		}
		c.AddInterfaceIntroduction(&Introduction{AspectClassName: class.Name, Name: iface, Pointcut: p})
	}

	for _, prop := range class.Properties {
		for _, ann := range b.metadata.PropertyAnnotations(class.Name, prop.Name, AnnotationIntroduce) {
			hint := fmt.Sprintf("%s::$%s (Introduce)", class.Name, prop.Name)
			p, err := b.parsePointcut(ann.StringValue("pointcut"), hint, class.Name, "")
			if err != nil {
				return err
			}
			c.AddPropertyIntroduction(&Introduction{AspectClassName: class.Name, Name: prop.Name, Pointcut: p})
		}
	}
	return nil
}

func (b *Builder) parsePointcut(expression, hint, aspectName, methodName string) (*pointcut.Pointcut, error) {
	if expression == "" {
		return nil, apperrors.Newf(apperrors.CodeAspectDefinitionError, "no pointcut expression given in %s", hint)
	}
	composite, err := b.parser.Parse(expression, hint)
	if err != nil {
		return nil, err
	}
	return pointcut.NewPointcut(expression, composite, aspectName, methodName), nil
}
