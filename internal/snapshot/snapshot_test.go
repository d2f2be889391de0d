package snapshot_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"

	"eventvm/internal/snapshot"
	"eventvm/internal/step"
)

type fakeProgram struct{ valid map[int]bool }

func (p fakeProgram) StepAt(id int) (step.ExecutionStep, bool) {
	if !p.valid[id] {
		return nil, false
	}
	return func(*step.Scope) (step.Opcode, error) { return step.Opcode{}, nil }, true
}

func TestCapture_RefusesUnknownProgramCounter(t *testing.T) {
	prog := fakeProgram{valid: map[int]bool{0: true}}
	scope := step.Scope{Args: map[string]any{}, Local: map[string]any{}}
	if _, err := snapshot.Capture(uuid.New(), prog, 7, &scope); err == nil {
		t.Fatalf("expected Capture to refuse a program counter with no registered step")
	}
}

func TestEncodeDecode_RoundTrips(t *testing.T) {
	prog := fakeProgram{valid: map[int]bool{3: true}}
	scope := step.Scope{
		Args:  map[string]any{"n": float64(4)},
		Local: map[string]any{"i": float64(2)},
	}
	id := uuid.New()
	snap, err := snapshot.Capture(id, prog, 3, &scope)
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}

	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap); err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	got, err := snapshot.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.ID != id || got.PC != 3 {
		t.Fatalf("expected id %v pc 3, got id %v pc %d", id, got.ID, got.PC)
	}
	if got.Args["n"] != float64(4) || got.Local["i"] != float64(2) {
		t.Fatalf("expected round-tripped args/local, got %+v %+v", got.Args, got.Local)
	}
}

func TestDecode_RejectsCorruptedPayload(t *testing.T) {
	prog := fakeProgram{valid: map[int]bool{0: true}}
	scope := step.Scope{Args: map[string]any{}, Local: map[string]any{}}
	snap, err := snapshot.Capture(uuid.New(), prog, 0, &scope)
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}

	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap); err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	if _, err := snapshot.Decode(bytes.NewReader(corrupted)); err == nil {
		t.Fatalf("expected Decode to reject a corrupted payload")
	}
}
