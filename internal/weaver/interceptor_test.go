package weaver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aop-weaver/internal/aspect"
	"github.com/aop-weaver/internal/dispatch"
	"github.com/aop-weaver/internal/expression"
	"github.com/aop-weaver/internal/testutil"
	apperrors "github.com/aop-weaver/pkg/errors"
)

type callLog struct {
	calls []string
}

func (l *callLog) record(name string) dispatch.AdviceFunc {
	return func(jp *dispatch.JoinPoint) (interface{}, error) {
		l.calls = append(l.calls, name)
		return nil, nil
	}
}

func (l *callLog) around(name string) dispatch.AdviceFunc {
	return func(jp *dispatch.JoinPoint) (interface{}, error) {
		l.calls = append(l.calls, name+"-pre")
		result, err := jp.AdviceChain().Proceed(jp)
		l.calls = append(l.calls, name+"-post")
		return result, err
	}
}

func (l *callLog) body(result interface{}, err error) dispatch.MethodBody {
	return func(args *dispatch.Arguments) (interface{}, error) {
		l.calls = append(l.calls, "body")
		return result, err
	}
}

func shopAdvices(log *callLog) *aspect.AdviceRegistry {
	r := aspect.NewAdviceRegistry()
	r.Register(testutil.LoggingAspect, "beforeSave", log.record("beforeSave"))
	r.Register(testutil.LoggingAspect, "aroundServices", log.around("aroundServices"))
	r.Register(testutil.LoggingAspect, "cacheResult", log.record("cacheResult"))
	r.Register(testutil.LoggingAspect, "afterFind", log.record("afterFind"))
	r.Register(testutil.LoggingAspect, "largeWithdrawalFailed", log.record("largeWithdrawalFailed"))
	return r
}

func wovenUserService(t *testing.T, log *callLog) *Proxy {
	t.Helper()
	evaluator := expression.NewEvaluator()
	b := newShopBuilder(t, Options{Compiler: evaluator}, testutil.ShopLoggingAspect())
	result, err := b.Build(context.Background())
	require.NoError(t, err)

	class, ok := result.Proxy(testutil.UserService)
	require.True(t, ok)
	proxy, err := NewInterceptorBuilder(shopAdvices(log), evaluator, nil).NewProxy(class, struct{}{})
	require.NoError(t, err)
	return proxy
}

func TestProxy_SuccessOrdering(t *testing.T) {
	log := &callLog{}
	proxy := wovenUserService(t, log)

	result, err := proxy.Call("find", dispatch.NewArguments([]string{"id"}, 7), log.body("alice", nil))
	require.NoError(t, err)
	assert.Equal(t, "alice", result)
	assert.Equal(t, []string{"aroundServices-pre", "body", "aroundServices-post", "cacheResult", "afterFind"}, log.calls)

	log.calls = nil
	_, err = proxy.Call("save", dispatch.NewArguments([]string{"entity"}, "user"), log.body(true, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"beforeSave", "aroundServices-pre", "body", "aroundServices-post"}, log.calls)
}

func TestProxy_RuntimeConditionGatesAdvice(t *testing.T) {
	log := &callLog{}
	proxy := wovenUserService(t, log)
	declined := errors.New("insufficient funds")

	_, err := proxy.Call("withdraw", dispatch.NewArguments([]string{"amount"}, 500), log.body(nil, declined))
	assert.Same(t, declined, err)
	assert.Equal(t, []string{"aroundServices-pre", "body", "aroundServices-post", "largeWithdrawalFailed"}, log.calls)

	log.calls = nil
	_, err = proxy.Call("withdraw", dispatch.NewArguments([]string{"amount"}, 20), log.body(nil, declined))
	assert.Same(t, declined, err)
	assert.Equal(t, []string{"aroundServices-pre", "body", "aroundServices-post"}, log.calls)
}

func TestProxy_UninterceptedMethodCallsBody(t *testing.T) {
	log := &callLog{}
	proxy := wovenUserService(t, log)

	assert.False(t, proxy.Intercepts("finalize"))
	result, err := proxy.Call("finalize", nil, log.body("done", nil))
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, []string{"body"}, log.calls)
}

func TestProxy_ConstructorWakeup(t *testing.T) {
	log := &callLog{}
	proxy := wovenUserService(t, log)

	var seen []interface{}
	body := func(args *dispatch.Arguments) (interface{}, error) {
		repo, _ := args.Get("repository")
		seen = append(seen, repo)
		return nil, nil
	}

	_, err := proxy.Wakeup("__construct", body)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = proxy.Call("__construct", dispatch.NewArguments([]string{"repository"}, "users"), body)
	require.NoError(t, err)
	_, err = proxy.Wakeup("__construct", body)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"users", "users"}, seen)

	_, err = proxy.Wakeup("find", body)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestInterceptorBuilder_Errors(t *testing.T) {
	plan := newMethodPlan("find", testutil.UserService)
	plan.add(AdviceMatch{Advice: aspect.Advice{Kind: aspect.KindBefore, AspectClassName: testutil.LoggingAspect, MethodName: "missing"}})

	_, err := NewInterceptorBuilder(aspect.NewAdviceRegistry(), nil, nil).BuildPlan(plan)
	assert.True(t, apperrors.IsResolutionError(err))

	advices := aspect.NewAdviceRegistry()
	advices.Register(testutil.LoggingAspect, "guarded", (&callLog{}).record("guarded"))
	plan = newMethodPlan("find", testutil.UserService)
	plan.add(AdviceMatch{
		Advice:       aspect.Advice{Kind: aspect.KindAround, AspectClassName: testutil.LoggingAspect, MethodName: "guarded"},
		ExpressionID: "abc",
	})
	_, err = NewInterceptorBuilder(advices, nil, nil).Build(testutil.UserService, plan)
	assert.True(t, apperrors.IsUnknownExpression(err))
}

func TestInterceptorBuilder_BuildPlanKeepsOrder(t *testing.T) {
	log := &callLog{}
	advices := aspect.NewAdviceRegistry()
	plan := newMethodPlan("save", testutil.BaseService)
	for _, name := range []string{"first", "second", "third"} {
		advices.Register(testutil.LoggingAspect, name, log.record(name))
		plan.add(AdviceMatch{Advice: aspect.Advice{Kind: aspect.KindBefore, AspectClassName: testutil.LoggingAspect, MethodName: name}})
	}

	built, err := NewInterceptorBuilder(advices, nil, nil).BuildPlan(plan)
	require.NoError(t, err)
	require.Len(t, built.Before, 3)
	assert.Equal(t, testutil.LoggingAspect+"::second", built.Before[1].Name)
	assert.Nil(t, built.Before[1].Gate)
}
