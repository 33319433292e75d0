package pointcut

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aop-weaver/internal/metadata"
	"github.com/aop-weaver/pkg/config"
	apperrors "github.com/aop-weaver/pkg/errors"
)

func newTestParser(t *testing.T, opts ParserOptions) *Parser {
	t.Helper()
	if opts.Reflection == nil {
		opts.Reflection = newTestRegistry(t)
	}
	return NewParser(opts)
}

func TestParse_ParenthesesBalance(t *testing.T) {
	p := newTestParser(t, ParserOptions{})
	const hint = `App\LoggingAspect::log (Before advice)`

	for k := 1; k <= 4; k++ {
		expr := "method(App\\Service\\UserService->save())" + strings.Repeat(")", k)
		_, err := p.Parse(expr, hint)
		require.Error(t, err)
		assert.True(t, apperrors.IsParseError(err))

		var detail *apperrors.ParenthesesError
		require.True(t, errors.As(err, &detail))
		assert.Equal(t, k, detail.Excess)
		assert.Equal(t, k, detail.Balance())
		assert.Equal(t, hint, detail.SourceHint)

		expr = strings.Repeat("(", k) + "method(App\\Service\\UserService->save())"
		_, err = p.Parse(expr, hint)
		require.True(t, errors.As(err, &detail))
		assert.Equal(t, k, detail.Missing)
		assert.Equal(t, -k, detail.Balance())
	}
}

func TestParse_ParenthesesInsideQuotesIgnored(t *testing.T) {
	p := newTestParser(t, ParserOptions{})
	c, err := p.Parse(`evaluate(this.name == "a) && (b")`, "")
	require.NoError(t, err)
	assert.True(t, c.HasRuntimeEvaluationsDefinition())
}

func TestParse_Designators(t *testing.T) {
	settings := config.NewSettings(map[string]interface{}{
		"features": map[string]interface{}{"audit": true, "mode": "strict"},
	})
	p := newTestParser(t, ParserOptions{
		Settings: settings,
		Filters:  mapFilterResolver{"App\\Filter": &stubFilter{value: true}},
	})

	tests := []struct {
		name       string
		expression string
		class      string
		method     string
		want       bool
	}{
		{"class glob", `class(App\Service\.*)`, `App\Service\UserService`, "save", true},
		{"class literal mismatch", `class(App\Service\UserService)`, `App\Service\OrderService`, "place", false},
		{"method", `method(App\Service\UserService->s.*())`, `App\Service\UserService`, "save", true},
		{"method star", `method(App\Service\*->*())`, `App\Service\OrderService`, "place", true},
		{"method public rejects protected", `method(public App\Service\UserService->delete())`, `App\Service\UserService`, "delete", false},
		{"method protected", `method(protected App\Service\UserService->delete())`, `App\Service\UserService`, "delete", true},
		{"class annotated", `classAnnotatedWith(App\Entity)`, `App\Service\UserService`, "save", true},
		{"class annotated value", `classAnnotatedWith(App\Entity(table == "users"))`, `App\Service\UserService`, "save", true},
		{"class annotated first instance only", `classAnnotatedWith(App\Entity(table == "users"))`, `App\Controller\HomeController`, "index", false},
		{"method annotated", `methodAnnotatedWith(App\Log)`, `App\Service\UserService`, "find", true},
		{"method annotated other", `methodAnnotatedWith(App\Log)`, `App\Service\UserService`, "save", false},
		{"method annotated value", `methodAnnotatedWith(App\Log(level = 'debug'))`, `App\Controller\HomeController`, "index", true},
		{"tagged", `methodTaggedWith(transactional)`, `App\Service\UserService`, "save", true},
		{"within interface", `within(App\Contract\Repository)`, `App\Service\SpecialOrderService`, "place", true},
		{"within class", `within(App\Service\OrderService)`, `App\Service\OrderService`, "place", true},
		{"within other", `within(App\Service\OrderService)`, `App\Service\UserService`, "save", false},
		{"filter", `filter(App\Filter)`, `App\Service\UserService`, "save", true},
		{"setting bool", `setting(features.audit)`, `App\Service\UserService`, "save", true},
		{"setting value", `setting(features.mode = "strict")`, `App\Service\UserService`, "save", true},
		{"setting value mismatch", `setting(features.mode == 'loose')`, `App\Service\UserService`, "save", false},
		{"setting missing", `setting(features.unknown)`, `App\Service\UserService`, "save", false},
		{"negation", `class(App\Service\.*) && !method(App\Service\UserService->save())`, `App\Service\UserService`, "save", false},
		{"or method group", `class(App\Controller\.*) || method(App\Service\UserService->find())`, `App\Service\UserService`, "find", true},
		{"group", `(class(App\Controller\.*) || class(App\Service\.*)) && method(.*->save())`, `App\Service\UserService`, "save", true},
		{"negated group", `!(class(App\Controller\.*) || class(App\Service\.*))`, `App\Service\UserService`, "save", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := p.Parse(tt.expression, "")
			require.NoError(t, err)
			got, err := c.Matches(tt.class, tt.method, tt.class, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	p := newTestParser(t, ParserOptions{
		Filters: mapFilterResolver{"App\\NotAFilter": struct{}{}},
	})

	tests := []struct {
		name       string
		expression string
		code       string
	}{
		{"missing designator", "class(App) && ", apperrors.CodeParseError},
		{"unknown designator", "klass(App)", apperrors.CodeParseError},
		{"reference without arrow", "App\\Aspect", apperrors.CodeParseError},
		{"method without arrow", "method(App\\Service\\UserService.save())", apperrors.CodeParseError},
		{"double visibility", "method(public protected App\\X->y())", apperrors.CodeParseError},
		{"setting without path", "setting()", apperrors.CodeParseError},
		{"setting unquoted value", "setting(features.mode = strict)", apperrors.CodeParseError},
		{"within unknown", "within(App\\Nope)", apperrors.CodeResolutionError},
		{"filter not a filter", "filter(App\\NotAFilter)", apperrors.CodeResolutionError},
		{"filter unknown", "filter(App\\Missing)", apperrors.CodeResolutionError},
		{"bad constraint", "method(App\\X->y(a ~ 1))", apperrors.CodeParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.expression, "App\\Aspect::m (Around advice)")
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetErrorCode(err))
			assert.Contains(t, err.Error(), "App\\Aspect::m (Around advice)")
		})
	}
}

func TestParse_SettingMustBeBoolean(t *testing.T) {
	p := newTestParser(t, ParserOptions{
		Settings: config.NewSettings(map[string]interface{}{"mode": "strict"}),
	})
	_, err := p.Parse("setting(mode)", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidPointcut, apperrors.GetErrorCode(err))
}

func TestParse_MethodArgumentConstraintsAreDeferred(t *testing.T) {
	p := newTestParser(t, ParserOptions{})
	c, err := p.Parse(`method(App\Service\UserService->find(id > 10, id.type in ('a', 'b')))`, "")
	require.NoError(t, err)

	matches, rt, err := c.MatchesWithRuntime(`App\Service\UserService`, "find", `App\Service\UserService`, 1)
	require.NoError(t, err)
	assert.True(t, matches)
	require.NotNil(t, rt)
	assert.False(t, rt.IsEmpty())

	// unknown argument is a static mismatch
	c, err = p.Parse(`method(App\Service\UserService->find(missing == 1))`, "")
	require.NoError(t, err)
	matches, err = c.Matches(`App\Service\UserService`, "find", `App\Service\UserService`, 1)
	require.NoError(t, err)
	assert.False(t, matches)
}

func TestParse_EvaluateFoldsInPlace(t *testing.T) {
	const (
		home  = `App\Controller\HomeController`
		order = `App\Service\OrderService`
		user  = `App\Service\UserService`
	)
	p := newTestParser(t, ParserOptions{})
	all := universe(t, p.opts.Reflection.(*metadata.Registry))

	// verdict per class: nil is a static mismatch, otherwise the fold with
	// the evaluation holding and failing.
	tests := []struct {
		expr    string
		verdict map[string][]bool
		reduced []string
	}{
		{
			expr:    `evaluate(this.enabled == TRUE) || class(App\Service\UserService)`,
			verdict: map[string][]bool{order: {true, false}, user: {true, true}},
			reduced: all.Names(),
		},
		{
			expr:    `class(App\Controller\HomeController) || evaluate(this.enabled == TRUE) && class(App\Service\UserService)`,
			verdict: map[string][]bool{home: nil, order: nil, user: {true, false}},
			reduced: []string{user},
		},
		{
			expr:    `!evaluate(this.enabled == TRUE) && class(App\Service\.*)`,
			verdict: map[string][]bool{home: nil, order: {false, true}},
			reduced: []string{order, `App\Service\SpecialOrderService`, user},
		},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := p.Parse(tt.expr, "")
			require.NoError(t, err)
			assert.Equal(t, tt.reduced, c.ReduceTargetClassNames(all).Names())
			assert.Equal(t, tt.expr, c.String())

			for className, want := range tt.verdict {
				matches, rt, err := c.MatchesWithRuntime(className, "", "", 1)
				require.NoError(t, err)
				if want == nil {
					assert.False(t, matches, className)
					continue
				}
				require.True(t, matches, className)
				v, err := fold(rt, constantly(true))
				require.NoError(t, err)
				assert.Equal(t, want[0], v, "%s when the evaluation holds: %s", className, rt)
				v, err = fold(rt, constantly(false))
				require.NoError(t, err)
				assert.Equal(t, want[1], v, "%s when the evaluation fails: %s", className, rt)
			}
		})
	}
}

func TestParse_References(t *testing.T) {
	p := newTestParser(t, ParserOptions{})
	resolver := mapResolver{}
	p.opts.Pointcuts = resolver

	named, err := p.Parse(`class(App\Service\.*)`, "")
	require.NoError(t, err)
	resolver[`App\Aspect->services`] = NewPointcut(`class(App\Service\.*)`, named, `App\Aspect`, "services")

	c, err := p.Parse(`\App\Aspect->services && method(.*->save())`, "")
	require.NoError(t, err)
	matches, err := c.Matches(`App\Service\UserService`, "save", `App\Service\UserService`, 1)
	require.NoError(t, err)
	assert.True(t, matches)

	c, err = p.Parse(`App\Aspect->unknown`, "")
	require.NoError(t, err)
	_, err = c.Matches(`App\Service\UserService`, "save", `App\Service\UserService`, 2)
	assert.Equal(t, apperrors.CodeUnknownPointcut, apperrors.GetErrorCode(err))
}

func TestComposite_String(t *testing.T) {
	p := newTestParser(t, ParserOptions{})
	c, err := p.Parse(`class(App\.*) || !within(App\Contract\Repository) && evaluate(this.enabled == TRUE)`, "")
	require.NoError(t, err)
	assert.Equal(t, `class(App\.*) || !within(App\Contract\Repository) && evaluate(this.enabled == TRUE)`, c.String())
}
