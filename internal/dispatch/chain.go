package dispatch

// AdviceFunc is the body of one advice.
type AdviceFunc func(jp *JoinPoint) (interface{}, error)

// Gate decides at call time whether an advice applies.
type Gate func(jp *JoinPoint) (bool, error)

// MethodBody invokes the original method.
type MethodBody func(args *Arguments) (interface{}, error)

// Advice is one advice ready to run.
type Advice struct {
	Name string
	Func AdviceFunc
	// Gate is nil for advice without runtime conditions.
	Gate Gate
}

func (a Advice) applies(jp *JoinPoint) (bool, error) {
	if a.Gate == nil {
		return true, nil
	}
	return a.Gate(jp)
}

// AdviceChain runs around advice in order and finally the method body. A
// chain belongs to a single call.
type AdviceChain struct {
	advices []Advice
	body    MethodBody
	index   int
}

// NewAdviceChain creates a chain over advices ending in body.
func NewAdviceChain(advices []Advice, body MethodBody) *AdviceChain {
	return &AdviceChain{advices: advices, body: body}
}

// Proceed invokes the next applicable advice, or the method body once all
// advice has run.
func (c *AdviceChain) Proceed(jp *JoinPoint) (interface{}, error) {
	for c.index < len(c.advices) {
		a := c.advices[c.index]
		c.index++
		ok, err := a.applies(jp)
		if err != nil {
			return nil, err
		}
		if ok {
			return a.Func(jp)
		}
	}
	return c.body(jp.Arguments())
}

// Rewind resets the chain to its first advice.
func (c *AdviceChain) Rewind() {
	c.index = 0
}
