package snapshotstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"eventvm/internal/snapshot"
	"eventvm/internal/snapshotstore"
)

func TestStore_SaveLoadListDelete(t *testing.T) {
	ctx := context.Background()
	store, err := snapshotstore.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer store.Close()

	id := uuid.New()
	snap := &snapshot.Snapshot{
		ID:    id,
		PC:    4,
		Args:  map[string]any{"n": float64(2)},
		Local: map[string]any{"i": float64(1)},
	}

	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.Load(ctx, id.String())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.PC != 4 || got.Args["n"] != float64(2) {
		t.Fatalf("expected the saved snapshot back, got %+v", got)
	}

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(ids) != 1 || ids[0] != id.String() {
		t.Fatalf("expected exactly one listed id, got %v", ids)
	}

	if err := store.Delete(ctx, id.String()); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.Load(ctx, id.String()); err == nil {
		t.Fatalf("expected Load to fail after Delete")
	}
}
