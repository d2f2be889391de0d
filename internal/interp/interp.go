// Package interp is the interpreter façade (spec.md §4.4): built-in
// and named-global function tables, compilation, and top-level
// invocation.
package interp

import (
	"errors"
	"fmt"

	"eventvm/internal/engine"
	"eventvm/internal/flow"
	"eventvm/internal/gen"
	"eventvm/internal/lang"
	"eventvm/internal/step"
)

// Interpreter holds every name this program's statements can resolve
// against: built-in functions supplied by the host, and named global
// functions compiled from Blocks at registration time.
type Interpreter struct {
	builtins map[string]lang.BuiltInFunction
	globals  map[string]*Executable
}

// New returns an Interpreter with empty built-in and global tables.
func New() *Interpreter {
	return &Interpreter{
		builtins: map[string]lang.BuiltInFunction{},
		globals:  map[string]*Executable{},
	}
}

// RegisterBuiltIn makes fn callable by name from a built-in Call
// statement. Registering the same name twice replaces the earlier
// entry.
func (in *Interpreter) RegisterBuiltIn(name string, fn lang.BuiltInFunction) {
	in.builtins[name] = fn
}

// ResolveBuiltIn implements gen.Resolver.
func (in *Interpreter) ResolveBuiltIn(name string) (lang.BuiltInFunction, bool) {
	fn, ok := in.builtins[name]
	return fn, ok
}

// DefineGlobal compiles body and registers it under name so an
// ExternCall statement can invoke it by that name at run time.
func (in *Interpreter) DefineGlobal(name string, body lang.Block) error {
	exe, err := in.Compile(body)
	if err != nil {
		return fmt.Errorf("interp: defining global %q: %w", name, err)
	}
	in.globals[name] = exe
	return nil
}

// Compile lowers and generates body into a standalone Executable
// bound to this interpreter's built-in table. A named-global Call
// inside body is not validated against the globals table here — that
// only happens when the call is actually dispatched, per spec.md §7.
func (in *Interpreter) Compile(body lang.Block) (*Executable, error) {
	root, errs := flow.Compile(body)
	if len(errs) > 0 {
		return nil, fmt.Errorf("interp: compiling flow graph: %w", joinErrors(errs))
	}
	program, errs := gen.Generate(root, in)
	if len(errs) > 0 {
		return nil, fmt.Errorf("interp: generating steps: %w", joinErrors(errs))
	}
	return &Executable{interp: in, program: program}, nil
}

// Exec compiles body and runs it immediately with params and env.
func (in *Interpreter) Exec(body lang.Block, params, env map[string]any) (engine.Result, error) {
	exe, err := in.Compile(body)
	if err != nil {
		return engine.Result{}, err
	}
	return exe.Exec(params, env)
}

// CallGlobal implements engine.GlobalCaller: it looks up name in the
// globals table and runs it to completion in a fresh frame sharing
// env with the caller.
func (in *Interpreter) CallGlobal(name string, params, env map[string]any) (engine.Result, error) {
	exe, ok := in.globals[name]
	if !ok {
		return engine.Result{}, fmt.Errorf("interp: call to unknown global function %q", name)
	}
	return exe.Exec(params, env)
}

// Executable is a compiled program: the dense step array plus the
// interpreter it resolves named-global calls against (spec.md §4.5).
type Executable struct {
	interp  *Interpreter
	program *gen.Program
}

// Program exposes the compiled step array, for callers (the CLI, a
// snapshot) that need to drive the engine or capture state directly
// instead of going through Exec/Resume.
func (e *Executable) Program() *gen.Program { return e.program }

// Caller exposes the engine.GlobalCaller this executable resolves
// named-global calls against, for callers driving engine.Step directly.
func (e *Executable) Caller() engine.GlobalCaller { return e.interp }

// StepNode runs exactly the step registered at id against scope,
// failing if id is out of range — a corrupted program or snapshot.
func (e *Executable) StepNode(id int, scope *step.Scope) (step.Opcode, error) {
	st, ok := e.program.StepAt(id)
	if !ok {
		return step.Opcode{}, fmt.Errorf("interp: step id %d out of range", id)
	}
	return st(scope)
}

// Exec constructs a fresh scope from params and env and runs this
// executable's frame from its entry point to completion.
func (e *Executable) Exec(params, env map[string]any) (engine.Result, error) {
	scope := lang.NewScope(params, env)
	return engine.Run(e.program, scope, e.interp)
}

// Resume continues a previously suspended frame from pc against the
// given scope, matching the RunFrom half of the resume contract
// described in spec.md §6.
func (e *Executable) Resume(pc int, scope *step.Scope) (engine.Result, error) {
	return engine.RunFrom(e.program, scope, pc, e.interp)
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := fmt.Sprintf("%d errors:", len(errs))
	for _, err := range errs {
		msg += "\n  " + err.Error()
	}
	return errors.New(msg)
}
