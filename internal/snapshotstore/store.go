// Package snapshotstore implements the host-persistence collaborator
// spec.md §6 names but keeps out of the interpreter core: a place to
// save and load suspended-frame snapshots, backed by a real SQL
// database rather than an in-memory map.
package snapshotstore

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"eventvm/internal/snapshot"
)

// Store persists snapshot.Snapshot values keyed by their ID.
type Store struct {
	db      *sql.DB
	dialect dialect
}

type dialect struct {
	name       string
	placeholder func(n int) string
	upsert     string
}

var dialects = map[string]dialect{
	"postgres": {
		name:       "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		upsert:     "INSERT INTO snapshots (id, payload) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload",
	},
	"sqlite": {
		name:       "sqlite",
		placeholder: func(n int) string { return "?" },
		upsert:     "INSERT INTO snapshots (id, payload) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET payload = excluded.payload",
	},
}

// Open connects to driverName ("postgres" or "sqlite") at dsn and
// ensures the snapshots table exists.
func Open(ctx context.Context, driverName, dsn string) (*Store, error) {
	d, ok := dialects[driverName]
	if !ok {
		return nil, fmt.Errorf("snapshotstore: unsupported driver %q", driverName)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: opening %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("snapshotstore: connecting to %s: %w", driverName, err)
	}
	s := &Store{db: db, dialect: d}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	blobType := "BLOB"
	if s.dialect.name == "postgres" {
		blobType = "BYTEA"
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		payload `+blobType+` NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("snapshotstore: creating schema: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Save encodes snap and upserts it under its own ID.
func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap); err != nil {
		return fmt.Errorf("snapshotstore: encoding snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, snap.ID.String(), buf.Bytes()); err != nil {
		return fmt.Errorf("snapshotstore: saving snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// Load decodes the snapshot stored under id.
func (s *Store) Load(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	query := fmt.Sprintf("SELECT payload FROM snapshots WHERE id = %s", s.dialect.placeholder(1))
	row := s.db.QueryRowContext(ctx, query, id)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("snapshotstore: no snapshot %s", id)
		}
		return nil, fmt.Errorf("snapshotstore: loading snapshot %s: %w", id, err)
	}
	snap, err := snapshot.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: decoding snapshot %s: %w", id, err)
	}
	return snap, nil
}

// List returns every stored snapshot's ID.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM snapshots ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: listing snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("snapshotstore: scanning snapshot id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes the snapshot stored under id, if any.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM snapshots WHERE id = %s", s.dialect.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("snapshotstore: deleting snapshot %s: %w", id, err)
	}
	return nil
}
