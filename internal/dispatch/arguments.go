// Package dispatch runs woven method calls: it builds join points, drives
// around advice chains and applies the before/after ordering.
package dispatch

// Arguments is an ordered set of named method arguments.
type Arguments struct {
	names  []string
	values map[string]interface{}
}

// NewArguments pairs names with values by position. Extra values are
// dropped; missing ones are nil.
func NewArguments(names []string, values ...interface{}) *Arguments {
	a := &Arguments{
		names:  make([]string, 0, len(names)),
		values: make(map[string]interface{}, len(names)),
	}
	for i, name := range names {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		a.Set(name, v)
	}
	return a
}

// Get returns the named argument.
func (a *Arguments) Get(name string) (interface{}, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Set replaces an argument, appending it if unknown.
func (a *Arguments) Set(name string, value interface{}) {
	if _, ok := a.values[name]; !ok {
		a.names = append(a.names, name)
	}
	a.values[name] = value
}

// Has reports whether the argument exists.
func (a *Arguments) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Names returns argument names in call order.
func (a *Arguments) Names() []string {
	return append([]string(nil), a.names...)
}

// Values returns argument values in call order.
func (a *Arguments) Values() []interface{} {
	out := make([]interface{}, len(a.names))
	for i, name := range a.names {
		out[i] = a.values[name]
	}
	return out
}

// Map returns a copy of the arguments keyed by name.
func (a *Arguments) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Len returns the number of arguments.
func (a *Arguments) Len() int {
	return len(a.names)
}

// Clone returns a shallow copy.
func (a *Arguments) Clone() *Arguments {
	return NewArguments(a.names, a.Values()...)
}
