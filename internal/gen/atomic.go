package gen

import (
	"fmt"

	"eventvm/internal/flow"
	"eventvm/internal/lang"
	"eventvm/internal/step"
)

// compileNormal handles both kinds of statement a NormalNode can wrap:
// a plain expression, or a built-in call (resolved eagerly so an
// unknown name fails at compile time rather than mid-run).
func (g *generator) compileNormal(t *flow.NormalNode) step.ExecutionStep {
	nextID := t.Next.NodeID()
	switch st := t.Stmt.(type) {
	case *lang.ExpressionStmt:
		expr, async := st.Expr, st.Async
		return func(scope *step.Scope) (step.Opcode, error) {
			if _, err := lang.EvalMaybeAsync(expr, scope, async); err != nil {
				return step.Opcode{}, err
			}
			return step.Opcode{Kind: step.OpMove, NextID: nextID}, nil
		}
	case *lang.CallStmt:
		fn, ok := g.resolver.ResolveBuiltIn(st.Name)
		if !ok {
			g.errs = append(g.errs, fmt.Errorf("gen: unknown built-in function %q", st.Name))
			return failingStep(fmt.Errorf("gen: unknown built-in function %q", st.Name))
		}
		params, async := st.Params, st.Async
		return func(scope *step.Scope) (step.Opcode, error) {
			args, err := evalParams(params, scope)
			if err != nil {
				return step.Opcode{}, err
			}
			if _, err := lang.CallBuiltIn(fn, args, scope.Env, async); err != nil {
				return step.Opcode{}, err
			}
			return step.Opcode{Kind: step.OpMove, NextID: nextID}, nil
		}
	default:
		return failingStep(fmt.Errorf("gen: normal node wraps unexpected statement %T", st))
	}
}

func (g *generator) compileExternCall(t *flow.ExternCallNode) step.ExecutionStep {
	nextID := t.Next.NodeID()
	name, params := t.Call.Name, t.Call.Params
	return func(scope *step.Scope) (step.Opcode, error) {
		args, err := evalParams(params, scope)
		if err != nil {
			return step.Opcode{}, err
		}
		return step.Opcode{Kind: step.OpCall, Name: name, Params: args, NextID: nextID}, nil
	}
}

func (g *generator) compileReturn(t *flow.ReturnNode) step.ExecutionStep {
	val := t.Value
	return func(scope *step.Scope) (step.Opcode, error) {
		v, err := resolveOptional(val, scope)
		if err != nil {
			return step.Opcode{}, err
		}
		return step.Opcode{Kind: step.OpReturn, Value: v}, nil
	}
}

func (g *generator) compileExit(t *flow.ExitNode) step.ExecutionStep {
	return func(scope *step.Scope) (step.Opcode, error) {
		return step.Opcode{Kind: step.OpExit}, nil
	}
}

// compileJump compiles a break or continue as a standalone step: a
// Jump is only ever interesting to the run-fusion pass, which
// special-cases it before it reaches here. As an atomic step it is a
// plain Move to its structural Next.
func (g *generator) compileJump(t *flow.JumpNode) step.ExecutionStep {
	nextID := t.Next.NodeID()
	return func(scope *step.Scope) (step.Opcode, error) {
		return step.Opcode{Kind: step.OpMove, NextID: nextID}, nil
	}
}

func (g *generator) compileIf(t *flow.IfNode) step.ExecutionStep {
	branches := t.Branches
	hasElse := t.Else != nil
	elseID, nextID := -1, t.Next.NodeID()
	if hasElse {
		elseID = t.Else.NodeID()
	}
	return func(scope *step.Scope) (step.Opcode, error) {
		for _, br := range branches {
			v, err := br.Cond.Eval(scope)
			if err != nil {
				return step.Opcode{}, err
			}
			if truthy(v) {
				return step.Opcode{Kind: step.OpMove, NextID: br.Body.NodeID()}, nil
			}
		}
		if hasElse {
			return step.Opcode{Kind: step.OpMove, NextID: elseID}, nil
		}
		return step.Opcode{Kind: step.OpMove, NextID: nextID}, nil
	}
}

func (g *generator) compileSwitch(t *flow.SwitchNode) step.ExecutionStep {
	pattern, branches := t.Pattern, t.Branches
	hasElse := t.Else != nil
	elseID, nextID := -1, t.Next.NodeID()
	if hasElse {
		elseID = t.Else.NodeID()
	}
	return func(scope *step.Scope) (step.Opcode, error) {
		patVal, err := pattern.Eval(scope)
		if err != nil {
			return step.Opcode{}, err
		}
		for _, br := range branches {
			condVal, err := br.Cond.Eval(scope)
			if err != nil {
				return step.Opcode{}, err
			}
			if strictEqual(patVal, condVal) {
				return step.Opcode{Kind: step.OpMove, NextID: br.Body.NodeID()}, nil
			}
		}
		if hasElse {
			return step.Opcode{Kind: step.OpMove, NextID: elseID}, nil
		}
		return step.Opcode{Kind: step.OpMove, NextID: nextID}, nil
	}
}

// compileLoopInit resolves the ambiguity between spec.md's literal
// loop-head description (iterator, then condition, used for both the
// initial and every subsequent check) and its own "body runs exactly N
// times" invariant for an initialised counting loop: running the
// iterator before the very first condition check would only run the
// body N-1 times. The initialiser's own step evaluates Init and then,
// unless the loop skips its initial check, evaluates Cond directly —
// bypassing Iter entirely — for that first branch only. Every
// subsequent pass through the loop head (triggered by the body
// falling through) still runs Iter then Cond exactly as written.
func (g *generator) compileLoopInit(t *flow.LoopInitNode) step.ExecutionStep {
	main := t.Main
	init := t.Init
	return func(scope *step.Scope) (step.Opcode, error) {
		if init != nil {
			if _, err := init.Eval(scope); err != nil {
				return step.Opcode{}, err
			}
		}
		if main.SkipInitialCheck {
			return step.Opcode{Kind: step.OpMove, NextID: main.Body.NodeID()}, nil
		}
		ok, err := evalCond(main.Cond, scope)
		if err != nil {
			return step.Opcode{}, err
		}
		if ok {
			return step.Opcode{Kind: step.OpMove, NextID: main.Body.NodeID()}, nil
		}
		return step.Opcode{Kind: step.OpMove, NextID: main.Next.NodeID()}, nil
	}
}

// compileLoopHead implements spec.md §4.2's loop head literally:
// iterator (if present), then condition (absent means true). This is
// reached directly for an uninitialised loop's entry and, when the
// loop is stepped node by node rather than fused, for every pass after
// the first of an initialised one.
func (g *generator) compileLoopHead(t *flow.LoopNode) step.ExecutionStep {
	return func(scope *step.Scope) (step.Opcode, error) {
		if t.Iter != nil {
			if _, err := t.Iter.Eval(scope); err != nil {
				return step.Opcode{}, err
			}
		}
		ok, err := evalCond(t.Cond, scope)
		if err != nil {
			return step.Opcode{}, err
		}
		if ok {
			return step.Opcode{Kind: step.OpMove, NextID: t.Body.NodeID()}, nil
		}
		return step.Opcode{Kind: step.OpMove, NextID: t.Next.NodeID()}, nil
	}
}

func failingStep(err error) step.ExecutionStep {
	return func(scope *step.Scope) (step.Opcode, error) {
		return step.Opcode{}, err
	}
}
