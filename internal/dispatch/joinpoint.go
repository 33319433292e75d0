package dispatch

// JoinPoint is the context handed to advice for one intercepted call.
type JoinPoint struct {
	proxy      interface{}
	className  string
	methodName string
	arguments  *Arguments
	chain      *AdviceChain
	result     interface{}
	err        error
}

// NewJoinPoint creates a join point. arguments is shared, not copied, so
// changes made by advice are seen by later advice and the method body.
func NewJoinPoint(proxy interface{}, className, methodName string, arguments *Arguments) *JoinPoint {
	if arguments == nil {
		arguments = NewArguments(nil)
	}
	return &JoinPoint{
		proxy:      proxy,
		className:  className,
		methodName: methodName,
		arguments:  arguments,
	}
}

func (jp *JoinPoint) withChain(chain *AdviceChain) *JoinPoint {
	jp.chain = chain
	return jp
}

func (jp *JoinPoint) withResult(result interface{}) *JoinPoint {
	jp.result = result
	return jp
}

func (jp *JoinPoint) withError(err error) *JoinPoint {
	jp.err = err
	return jp
}

// Proxy returns the object the method was called on.
func (jp *JoinPoint) Proxy() interface{} { return jp.proxy }

// ClassName returns the target class name.
func (jp *JoinPoint) ClassName() string { return jp.className }

// MethodName returns the intercepted method name.
func (jp *JoinPoint) MethodName() string { return jp.methodName }

// Arguments returns the mutable argument set.
func (jp *JoinPoint) Arguments() *Arguments { return jp.arguments }

// MethodArgument returns one argument.
func (jp *JoinPoint) MethodArgument(name string) (interface{}, bool) {
	return jp.arguments.Get(name)
}

// SetMethodArgument replaces one argument for the rest of the call.
func (jp *JoinPoint) SetMethodArgument(name string, value interface{}) {
	jp.arguments.Set(name, value)
}

// AdviceChain returns the around chain, or nil outside around advice.
func (jp *JoinPoint) AdviceChain() *AdviceChain { return jp.chain }

// Result returns the method result. Only set for after-returning and
// after advice.
func (jp *JoinPoint) Result() interface{} { return jp.result }

// HasException reports whether the call failed.
func (jp *JoinPoint) HasException() bool { return jp.err != nil }

// Exception returns the error raised by the call.
func (jp *JoinPoint) Exception() error { return jp.err }
