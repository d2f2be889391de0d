package hostkit_test

import (
	"testing"

	"eventvm/internal/hostkit"
	"eventvm/internal/lang"
)

func TestBinaryOp_StringConcatenation(t *testing.T) {
	op := hostkit.BinaryOp{
		Op:    "+",
		Left:  hostkit.ConstExpr{Value: "count: "},
		Right: hostkit.ConstExpr{Value: float64(3)},
	}
	scope := lang.NewScope(nil, nil)
	v, err := op.Eval(scope)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if v != "count: 3" {
		t.Fatalf("expected \"count: 3\", got %q", v)
	}
}

func TestAssign_WritesLocal(t *testing.T) {
	scope := lang.NewScope(nil, nil)
	a := hostkit.Assign{Name: "x", Value: hostkit.ConstExpr{Value: float64(7)}}
	if _, err := a.Eval(scope); err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if scope.Local["x"] != float64(7) {
		t.Fatalf("expected local %q to be 7, got %v", "x", scope.Local["x"])
	}
}

func TestRegistry_EchoRoundTrips(t *testing.T) {
	registrar := &fakeRegistrar{fns: map[string]lang.BuiltInFunction{}}
	hostkit.WireInto(registrar)

	fn, ok := registrar.fns["echo"]
	if !ok {
		t.Fatalf("expected \"echo\" to be registered")
	}
	out, err := fn.Call(map[string]any{"text": "hi"}, nil)
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	params, ok := out.(map[string]any)
	if !ok || params["text"] != "hi" {
		t.Fatalf("expected echo to return its params unchanged, got %v", out)
	}
}

type fakeRegistrar struct {
	fns map[string]lang.BuiltInFunction
}

func (r *fakeRegistrar) RegisterBuiltIn(name string, fn lang.BuiltInFunction) {
	r.fns[name] = fn
}

func TestLoadProgram_CallWithLiteralAndExprParams(t *testing.T) {
	doc := []byte(`{
		"body": [
			{
				"kind": "call",
				"name": "print",
				"builtIn": true,
				"params": {
					"text": {"literal": {"kind": "string", "str": "hi"}},
					"count": {"expr": {"kind": "arg", "name": "n"}}
				}
			},
			{"kind": "return", "value": {"literal": {"kind": "number", "num": 9}}}
		]
	}`)

	block, err := hostkit.LoadProgram(doc)
	if err != nil {
		t.Fatalf("LoadProgram error: %v", err)
	}
	if len(block) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(block))
	}
	call, ok := block[0].(*lang.CallStmt)
	if !ok {
		t.Fatalf("expected a *lang.CallStmt, got %T", block[0])
	}
	if call.Name != "print" || !call.BuiltIn {
		t.Fatalf("unexpected call statement: %+v", call)
	}
	textVal, err := call.Params["text"].Resolve(lang.NewScope(nil, nil))
	if err != nil || textVal != "hi" {
		t.Fatalf("expected params[text] to resolve to \"hi\", got %v, %v", textVal, err)
	}
	countVal, err := call.Params["count"].Resolve(lang.NewScope(map[string]any{"n": float64(4)}, nil))
	if err != nil || countVal != float64(4) {
		t.Fatalf("expected params[count] to resolve the arg reference, got %v, %v", countVal, err)
	}

	ret, ok := block[1].(*lang.ReturnStmt)
	if !ok {
		t.Fatalf("expected a *lang.ReturnStmt, got %T", block[1])
	}
	retVal, err := ret.Value.Resolve(lang.NewScope(nil, nil))
	if err != nil || retVal != float64(9) {
		t.Fatalf("expected the return literal to resolve to 9, got %v, %v", retVal, err)
	}
}

func TestLoadProgram_LoopWithBinaryCondition(t *testing.T) {
	doc := []byte(`{
		"body": [
			{
				"kind": "loop",
				"init": {"kind": "assign", "name": "i", "left": {"kind": "const", "value": 0}},
				"cond": {"kind": "binary", "op": "<", "left": {"kind": "local", "name": "i"}, "right": {"kind": "const", "value": 3}},
				"iter": {"kind": "assign", "name": "i", "left": {"kind": "binary", "op": "+", "left": {"kind": "local", "name": "i"}, "right": {"kind": "const", "value": 1}}},
				"bodyStmts": [
					{"kind": "continue"}
				]
			}
		]
	}`)

	block, err := hostkit.LoadProgram(doc)
	if err != nil {
		t.Fatalf("LoadProgram error: %v", err)
	}
	loop, ok := block[0].(*lang.LoopStmt)
	if !ok {
		t.Fatalf("expected a *lang.LoopStmt, got %T", block[0])
	}
	if loop.Cond == nil || loop.Init == nil || loop.Iter == nil {
		t.Fatalf("expected init/cond/iter to all be populated: %+v", loop)
	}
	if len(loop.Body) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(loop.Body))
	}
	if _, ok := loop.Body[0].(*lang.ContinueStmt); !ok {
		t.Fatalf("expected a *lang.ContinueStmt, got %T", loop.Body[0])
	}
}

func TestLoadProgram_UnknownStatementKind(t *testing.T) {
	_, err := hostkit.LoadProgram([]byte(`{"body": [{"kind": "frobnicate"}]}`))
	if err == nil {
		t.Fatalf("expected an error for an unknown statement kind")
	}
}
