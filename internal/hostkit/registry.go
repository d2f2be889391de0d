package hostkit

import "eventvm/internal/lang"

// ID identifies a registered built-in independently of its name, the
// way the teacher's builtins.ID enum lets call sites and tests refer
// to a built-in without depending on the string used to look it up.
type ID int

const (
	Echo ID = iota
	Print
	Len
	TypeOf
)

// Meta describes one registered built-in.
type Meta struct {
	ID   ID
	Name string
}

// Builtin pairs a Meta with its implementation.
type Builtin struct {
	Meta Meta
	Call func(params, env map[string]any) (any, error)
}

var registry = map[string]Builtin{}

// Register adds b to the package-level registry, keyed by name. Built
// on init() so importing hostkit for its side effect is enough to
// make its built-ins available, mirroring the teacher's
// `builtins.Register` pattern.
func Register(b Builtin) {
	registry[b.Meta.Name] = b
}

type funcBuiltIn func(params, env map[string]any) (any, error)

func (f funcBuiltIn) Call(params, env map[string]any) (any, error) { return f(params, env) }

// Registrar is the subset of *interp.Interpreter this package needs
// to wire its built-ins in without importing interp (which would
// create an import cycle if interp ever depended on hostkit for
// defaults).
type Registrar interface {
	RegisterBuiltIn(name string, fn lang.BuiltInFunction)
}

// WireInto registers every built-in this package knows about into r.
func WireInto(r Registrar) {
	for name, b := range registry {
		r.RegisterBuiltIn(name, funcBuiltIn(b.Call))
	}
}
