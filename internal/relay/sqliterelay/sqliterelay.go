// Package sqliterelay is a relay persisted in a SQLite database.
package sqliterelay

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/relay"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version. Databases written by a
// newer schema are refused.
const schemaVersion = 1

// ErrSchemaVersion is returned when a database has an unknown schema version.
var ErrSchemaVersion = errors.New("unsupported schema version")

// Relay stores envelopes in SQLite with WAL mode for concurrent reads.
type Relay struct {
	db   *sql.DB
	path string
}

var _ relay.Relay = (*Relay)(nil)

// Open creates or opens the database at path, applying pragmas and
// migrations. It is safe to call repeatedly on the same path.
func Open(path string) (*Relay, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Relay{db: db, path: path}, nil
}

// URL implements relay.Relay.
func (r *Relay) URL() string { return "sqlite://" + r.path }

// Close implements relay.Relay.
func (r *Relay) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("%w: database has %d, want at most %d", ErrSchemaVersion, version, schemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Publish implements relay.Relay. Replacement and deletion are applied in
// the same transaction as the insert.
func (r *Relay) Publish(ctx context.Context, env envelope.Envelope) error {
	if err := relay.Check(env); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("publish: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE id = ?`, env.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("publish: lookup: %w", err)
	}
	if exists > 0 {
		return nil
	}

	var deletedBy, requestID string
	err = tx.QueryRowContext(ctx, `SELECT pubkey, request_id FROM deletions WHERE id = ?`, env.ID).Scan(&deletedBy, &requestID)
	switch {
	case err == nil && deletedBy == env.Pubkey:
		slog.Debug("dropping deleted envelope", "relay", r.URL(), "id", env.ID, "deleted_by", requestID)
		return nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("publish: tombstone lookup: %w", err)
	}

	var slot sql.NullString
	if key, ok := relay.ReplaceableKey(env); ok {
		slot = sql.NullString{String: key, Valid: true}
		superseded, err := replaceSlot(ctx, tx, key, env)
		if err != nil {
			return err
		}
		if superseded {
			slog.Debug("dropping superseded replaceable envelope", "relay", r.URL(), "id", env.ID)
			return tx.Commit()
		}
	}

	for _, id := range relay.DeletionTargets(env) {
		if err := applyDeletion(ctx, tx, id, env); err != nil {
			return err
		}
	}

	tagsJSON, err := json.Marshal(env.Tags)
	if err != nil {
		return fmt.Errorf("publish: marshal tags: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, pubkey, created_at, kind, tags, content, sig, slot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, env.ID, env.Pubkey, int64(env.CreatedAt), int(env.Kind), string(tagsJSON), env.Content, env.Sig, slot)
	if err != nil {
		return fmt.Errorf("publish: insert event: %w", err)
	}

	for _, tag := range env.Tags {
		if len(tag) < 2 {
			continue
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO event_tags (event_id, name, value) VALUES (?, ?, ?)`, env.ID, tag[0], tag[1])
		if err != nil {
			return fmt.Errorf("publish: insert tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("publish: commit: %w", err)
	}
	return nil
}

// replaceSlot removes the envelope currently in slot when env is newer. It
// reports true when the current occupant is newer and env must be dropped.
func replaceSlot(ctx context.Context, tx *sql.Tx, slot string, env envelope.Envelope) (bool, error) {
	var (
		prevID      string
		prevCreated int64
	)
	err := tx.QueryRowContext(ctx, `SELECT id, created_at FROM events WHERE slot = ?`, slot).Scan(&prevID, &prevCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("publish: slot lookup: %w", err)
	}

	prev := envelope.Envelope{ID: prevID, CreatedAt: uint64(prevCreated)}
	if envelope.Compare(prev, env) > 0 {
		return true, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, prevID); err != nil {
		return false, fmt.Errorf("publish: replace: %w", err)
	}
	return false, nil
}

func applyDeletion(ctx context.Context, tx *sql.Tx, id string, req envelope.Envelope) error {
	var author string
	err := tx.QueryRowContext(ctx, `SELECT pubkey FROM events WHERE id = ?`, id).Scan(&author)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("publish: deletion lookup: %w", err)
	case author != req.Pubkey:
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deletions (id, pubkey, request_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, req.Pubkey, req.ID)
	if err != nil {
		return fmt.Errorf("publish: tombstone: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ? AND pubkey = ?`, id, req.Pubkey); err != nil {
		return fmt.Errorf("publish: delete: %w", err)
	}
	return nil
}
