package aspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aop-weaver/internal/dispatch"
	"github.com/aop-weaver/internal/metadata"
	"github.com/aop-weaver/internal/pointcut"
	apperrors "github.com/aop-weaver/pkg/errors"
)

func ann(annotationType string, kv ...string) metadata.Annotation {
	values := make(map[string]interface{})
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i]] = kv[i+1]
	}
	return metadata.Annotation{Type: annotationType, Values: values}
}

func newRegistry(t *testing.T, aspects ...*metadata.ClassMetadata) *metadata.Registry {
	t.Helper()
	classes := []*metadata.ClassMetadata{
		{
			Name: `App\Contract\Loggable`,
			Kind: metadata.KindInterface,
			Methods: []metadata.MethodMetadata{
				{Name: "log"},
			},
		},
		{
			Name: `App\Service\UserService`,
			Methods: []metadata.MethodMetadata{
				{Name: "save"},
				{Name: "find"},
			},
		},
		{
			Name: `App\Controller\HomeController`,
			Methods: []metadata.MethodMetadata{
				{Name: "index"},
			},
		},
	}
	r, err := metadata.NewRegistry(append(classes, aspects...)...)
	require.NoError(t, err)
	return r
}

func loggingAspect() *metadata.ClassMetadata {
	return &metadata.ClassMetadata{
		Name:        `App\Aspect\LoggingAspect`,
		Annotations: []metadata.Annotation{ann(AnnotationAspect)},
		Methods: []metadata.MethodMetadata{
			{Name: "services", Annotations: []metadata.Annotation{ann(AnnotationPointcut, "expression", `class(App\Service\*)`)}},
			{Name: "beforeSave", Annotations: []metadata.Annotation{ann("aop.Before", "pointcut", `method(App\Service\*->save())`)}},
			{Name: "aroundAll", Annotations: []metadata.Annotation{ann(`\aop.Around`, "pointcut", `App\Aspect\LoggingAspect->services`)}},
		},
	}
}

func TestBuilder_Build(t *testing.T) {
	r := newRegistry(t, loggingAspect())
	b := NewBuilder(BuilderOptions{Metadata: r})

	c, err := b.Build(`App\Aspect\LoggingAspect`)
	require.NoError(t, err)
	assert.Equal(t, `App\Aspect\LoggingAspect`, c.ClassName())
	require.Len(t, c.Pointcuts(), 1)
	assert.Equal(t, "services", c.Pointcuts()[0].PointcutMethodName())

	require.Len(t, c.Advisors(), 2)
	assert.Equal(t, Advice{Kind: KindBefore, AspectClassName: `App\Aspect\LoggingAspect`, MethodName: "beforeSave"}, c.Advisors()[0].Advice)
	assert.Equal(t, KindAround, c.Advisors()[1].Advice.Kind)
	assert.Empty(t, c.Advisors()[0].Pointcut.PointcutMethodName())

	_, ok := b.Pointcuts().FindPointcut(`\App\Aspect\LoggingAspect`, "services")
	assert.True(t, ok)

	matches, err := c.Advisors()[1].Pointcut.Matches(`App\Service\UserService`, "find", `App\Service\UserService`, 1)
	require.NoError(t, err)
	assert.True(t, matches)
	matches, err = c.Advisors()[0].Pointcut.Matches(`App\Service\UserService`, "find", `App\Service\UserService`, 2)
	require.NoError(t, err)
	assert.False(t, matches)
}

func TestBuilder_Introductions(t *testing.T) {
	aspectClass := &metadata.ClassMetadata{
		Name: `App\Aspect\IntroAspect`,
		Annotations: []metadata.Annotation{
			ann(AnnotationAspect),
			ann(AnnotationIntroduce, "pointcut", `class(App\Service\*)`, "interface", `\App\Contract\Loggable`),
		},
		Properties: []metadata.PropertyMetadata{
			{Name: "logger", Annotations: []metadata.Annotation{ann(AnnotationIntroduce, "pointcut", `class(App\Controller\*)`)}},
			{Name: "plain"},
		},
	}
	b := NewBuilder(BuilderOptions{Metadata: newRegistry(t, aspectClass)})

	c, err := b.Build(aspectClass.Name)
	require.NoError(t, err)
	require.Len(t, c.InterfaceIntroductions(), 1)
	assert.Equal(t, `App\Contract\Loggable`, c.InterfaceIntroductions()[0].Name)
	require.Len(t, c.PropertyIntroductions(), 1)
	assert.Equal(t, "logger", c.PropertyIntroductions()[0].Name)

	index := pointcut.NewClassNameIndex(`App\Service\UserService`, `App\Controller\HomeController`, `App\Other`)
	reduced := c.ReduceTargetClassNames(index)
	assert.ElementsMatch(t, []string{`App\Service\UserService`, `App\Controller\HomeController`}, reduced.Names())
	assert.True(t, c.MayAffect(`App\Service\UserService`))
	assert.False(t, c.MayAffect(`App\Other`))
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		aspect *metadata.ClassMetadata
		code   string
	}{
		{
			name:   "empty aspect",
			aspect: &metadata.ClassMetadata{Name: `App\Aspect\Empty`, Annotations: []metadata.Annotation{ann(AnnotationAspect)}},
			code:   apperrors.CodeAspectDefinitionError,
		},
		{
			name: "advice without pointcut",
			aspect: &metadata.ClassMetadata{
				Name:        `App\Aspect\NoPointcut`,
				Annotations: []metadata.Annotation{ann(AnnotationAspect)},
				Methods:     []metadata.MethodMetadata{{Name: "m", Annotations: []metadata.Annotation{ann("aop.After")}}},
			},
			code: apperrors.CodeAspectDefinitionError,
		},
		{
			name: "introduction without interface",
			aspect: &metadata.ClassMetadata{
				Name:        `App\Aspect\NoInterface`,
				Annotations: []metadata.Annotation{ann(AnnotationAspect), ann(AnnotationIntroduce, "pointcut", "class(*)")},
			},
			code: apperrors.CodeAspectDefinitionError,
		},
		{
			name: "introduction of a class",
			aspect: &metadata.ClassMetadata{
				Name: `App\Aspect\NotInterface`,
				Annotations: []metadata.Annotation{
					ann(AnnotationAspect),
					ann(AnnotationIntroduce, "pointcut", "class(*)", "interface", `App\Service\UserService`),
				},
			},
			code: apperrors.CodeResolutionError,
		},
		{
			name: "unbalanced expression",
			aspect: &metadata.ClassMetadata{
				Name:        `App\Aspect\Broken`,
				Annotations: []metadata.Annotation{ann(AnnotationAspect)},
				Methods:     []metadata.MethodMetadata{{Name: "m", Annotations: []metadata.Annotation{ann("aop.Before", "pointcut", "class(App\\*))")}}},
			},
			code: apperrors.CodeParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(BuilderOptions{Metadata: newRegistry(t, tt.aspect)})
			_, err := b.Build(tt.aspect.Name)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.aspect.Name)
		})
	}
}

func TestBuilder_ParseErrorCarriesSourceHint(t *testing.T) {
	aspectClass := &metadata.ClassMetadata{
		Name:        `App\Aspect\Broken`,
		Annotations: []metadata.Annotation{ann(AnnotationAspect)},
		Methods:     []metadata.MethodMetadata{{Name: "guard", Annotations: []metadata.Annotation{ann("aop.Before", "pointcut", "class(App\\*")}}},
	}
	b := NewBuilder(BuilderOptions{Metadata: newRegistry(t, aspectClass)})

	_, err := b.Build(aspectClass.Name)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `App\Aspect\Broken::guard (Before advice)`)
}

func TestBuilder_BuildAllKeepsGoodAspects(t *testing.T) {
	empty := &metadata.ClassMetadata{Name: `App\Aspect\Empty`, Annotations: []metadata.Annotation{ann(AnnotationAspect)}}
	b := NewBuilder(BuilderOptions{Metadata: newRegistry(t, loggingAspect(), empty)})

	containers, err := b.BuildAll()
	assert.True(t, apperrors.IsAspectDefinitionError(err))
	require.Len(t, containers, 1)
	assert.Equal(t, `App\Aspect\LoggingAspect`, containers[0].ClassName())
}

func TestBuilder_DuplicatePointcut(t *testing.T) {
	b := NewBuilder(BuilderOptions{Metadata: newRegistry(t, loggingAspect())})
	_, err := b.Build(`App\Aspect\LoggingAspect`)
	require.NoError(t, err)
	_, err = b.Build(`App\Aspect\LoggingAspect`)
	assert.True(t, apperrors.IsAspectDefinitionError(err))
}

func TestBuilder_FailedAspectRegistersNoPointcuts(t *testing.T) {
	half := &metadata.ClassMetadata{
		Name:        `App\Aspect\HalfBuilt`,
		Annotations: []metadata.Annotation{ann(AnnotationAspect)},
		Methods: []metadata.MethodMetadata{
			{Name: "services", Annotations: []metadata.Annotation{ann(AnnotationPointcut, "expression", `class(App\Service\*)`)}},
			{Name: "broken", Annotations: []metadata.Annotation{ann("aop.Before", "pointcut", "class(App\\*")}},
		},
	}
	b := NewBuilder(BuilderOptions{Metadata: newRegistry(t, half)})

	_, err := b.Build(half.Name)
	require.Error(t, err)
	assert.Empty(t, b.Pointcuts().Names())
	_, ok := b.Pointcuts().FindPointcut(half.Name, "services")
	assert.False(t, ok)
}

func TestPointcutRegistry_RegisterIsAllOrNothing(t *testing.T) {
	r := NewPointcutRegistry()
	first := pointcut.NewPointcut("class(A)", pointcut.NewComposite(), `App\Aspect`, "first")
	second := pointcut.NewPointcut("class(B)", pointcut.NewComposite(), `App\Aspect`, "second")
	require.NoError(t, r.Register(first))

	err := r.Register(second, first)
	assert.True(t, apperrors.IsAspectDefinitionError(err))
	assert.Equal(t, []string{`App\Aspect->first`}, r.Names())
}

func TestAdviceRegistry(t *testing.T) {
	r := NewAdviceRegistry()
	r.Register(`\App\Aspect\LoggingAspect`, "beforeSave", func(*dispatch.JoinPoint) (interface{}, error) {
		return "ran", nil
	})

	fn, err := r.Resolve(Advice{Kind: KindBefore, AspectClassName: `App\Aspect\LoggingAspect`, MethodName: "beforeSave"})
	require.NoError(t, err)
	result, err := fn(nil)
	require.NoError(t, err)
	assert.Equal(t, "ran", result)

	_, err = r.Resolve(Advice{AspectClassName: `App\Aspect\LoggingAspect`, MethodName: "missing"})
	assert.True(t, apperrors.IsResolutionError(err))
}

func TestFilterRegistry(t *testing.T) {
	r := NewFilterRegistry()
	built := 0
	r.Register(`App\Filter\Always`, func() interface{} {
		built++
		return struct{}{}
	})

	first, err := r.ResolveFilter(`\App\Filter\Always`)
	require.NoError(t, err)
	second, err := r.ResolveFilter(`App\Filter\Always`)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, built)

	_, err = r.ResolveFilter("nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSourceHint(t *testing.T) {
	assert.Equal(t, "A::m (Before advice)", SourceHint("A", "m", "Before advice"))
	assert.Equal(t, "A (Introduce)", SourceHint("A", "", "Introduce"))
	k, ok := KindForAnnotation("aop.AfterThrowing")
	assert.True(t, ok)
	assert.Equal(t, KindAfterThrowing, k)
	_, ok = KindForAnnotation("aop.Aspect")
	assert.False(t, ok)
}
