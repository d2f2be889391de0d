// Package snapshot implements the persisted-state wire format spec.md
// §6 describes: a suspended frame's program counter and scope, captured
// only at a step boundary, with an integrity checksum over the payload.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"eventvm/internal/step"
)

var magic = [4]byte{'E', 'V', 'S', '1'}

// Program is the subset of gen.Program this package needs: enough to
// confirm a program counter names a real step before persisting it.
type Program interface {
	StepAt(id int) (step.ExecutionStep, bool)
}

// Snapshot is a suspended invocation: the program counter to resume
// at, the invocation's fixed arguments, and its accumulated local
// scratch state. Env is deliberately not part of the snapshot — spec.md
// §6 requires it be supplied afresh by the caller on resume, since it
// is shared ambient state rather than something owned by this frame.
type Snapshot struct {
	ID    uuid.UUID
	PC    int
	Args  map[string]any
	Local map[string]any
}

// Capture builds a Snapshot for scope suspended at pc. It refuses to
// snapshot a pc that isn't itself an addressable step: mid-fused-run
// state has no ID of its own to resume from, so a caller can only ever
// observe (and therefore only ever capture) a real step boundary,
// per spec.md §6 and §9.
func Capture(id uuid.UUID, prog Program, pc int, scope *step.Scope) (*Snapshot, error) {
	if _, ok := prog.StepAt(pc); !ok {
		return nil, fmt.Errorf("snapshot: %d is not a step boundary this program recognizes", pc)
	}
	return &Snapshot{
		ID:    id,
		PC:    pc,
		Args:  scope.Args,
		Local: scope.Local,
	}, nil
}

// Restore rebuilds a Scope from s, supplying env afresh as spec.md §6
// requires.
func (s *Snapshot) Restore(env map[string]any) *step.Scope {
	scope := step.Scope{Args: s.Args, Local: s.Local, Env: env}
	if scope.Args == nil {
		scope.Args = map[string]any{}
	}
	if scope.Local == nil {
		scope.Local = map[string]any{}
	}
	if scope.Env == nil {
		scope.Env = map[string]any{}
	}
	return &scope
}

type payload struct {
	PC    int            `json:"pc"`
	Args  map[string]any `json:"args"`
	Local map[string]any `json:"local"`
}

// Encode writes s to w as: a 4-byte magic header, the snapshot's UUID,
// a fixed 32-byte BLAKE2b-256 checksum of the payload, and a
// length-prefixed JSON payload. JSON
// carries the payload rather than a fixed binary layout because Args
// and Local hold arbitrary host values (spec.md's Expr results are
// opaque `any`), unlike the teacher's own module format, which only
// ever serializes its own closed set of constant kinds.
func Encode(w io.Writer, s *Snapshot) error {
	body, err := json.Marshal(payload{PC: s.PC, Args: s.Args, Local: s.Local})
	if err != nil {
		return fmt.Errorf("snapshot: encoding payload: %w", err)
	}
	sum := blake2b.Sum256(body)

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	idBytes, err := s.ID.MarshalBinary()
	if err != nil {
		return fmt.Errorf("snapshot: encoding id: %w", err)
	}
	if _, err := w.Write(idBytes); err != nil {
		return err
	}
	if _, err := w.Write(sum[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(body))); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// Decode reads a Snapshot written by Encode, rejecting a corrupted or
// foreign payload before it ever reaches a resumed invocation.
func Decode(r io.Reader) (*Snapshot, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("snapshot: reading header: %w", err)
	}
	if hdr != magic {
		return nil, fmt.Errorf("snapshot: invalid magic header %q", string(hdr[:]))
	}

	var idBytes [16]byte
	if _, err := io.ReadFull(r, idBytes[:]); err != nil {
		return nil, fmt.Errorf("snapshot: reading id: %w", err)
	}
	var id uuid.UUID
	if err := id.UnmarshalBinary(idBytes[:]); err != nil {
		return nil, fmt.Errorf("snapshot: decoding id: %w", err)
	}

	var wantSum [32]byte
	if _, err := io.ReadFull(r, wantSum[:]); err != nil {
		return nil, fmt.Errorf("snapshot: reading checksum: %w", err)
	}

	var bodyLen uint32
	if err := binary.Read(r, binary.LittleEndian, &bodyLen); err != nil {
		return nil, fmt.Errorf("snapshot: reading payload length: %w", err)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("snapshot: reading payload: %w", err)
	}

	gotSum := blake2b.Sum256(body)
	if !bytes.Equal(gotSum[:], wantSum[:]) {
		return nil, fmt.Errorf("snapshot: checksum mismatch, payload is corrupted")
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("snapshot: decoding payload: %w", err)
	}
	return &Snapshot{ID: id, PC: p.PC, Args: p.Args, Local: p.Local}, nil
}
