package db

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	_ "modernc.org/sqlite"
)

// schemaSQL is compiled into the binary at build time so schema init works
// in the runtime image without shipping the .sql file alongside it.
//
//go:embed schema.sql
var schemaSQL string

// Store is the single-file persistence layer. WAL mode allows concurrent
// readers; the connection pool is capped at one writer so SQLite never
// sees competing write transactions.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file and applies the pragmas the
// engine requires: WAL journaling, foreign keys on, 5s busy timeout.
func Open(path string) (*Store, error) {
	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"journal_mode(WAL)",
			"foreign_keys(1)",
			"busy_timeout(5000)",
		},
	}.Encode()
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %v", err)
	}
	handle.SetMaxOpenConns(1)

	if err := handle.Ping(); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Printf("[DB] Opened %s (WAL, foreign keys on)", path)
	return &Store{db: handle}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *Store) InitSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}
	log.Println("[DB] Schema initialized")
	return nil
}

// Audit appends one audit-log row. Audit writes never fail a pipeline; the
// error is returned for callers that care.
func (s *Store) Audit(ctx context.Context, actor, action, entity, entityID, detail string) error {
	return auditRow(ctx, s.db, actor, action, entity, entityID, detail)
}

// execer is the slice of *sql.DB / *sql.Tx the audit writes need, so each
// persisted stage can append its row inside its own transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func auditRow(ctx context.Context, ex execer, actor, action, entity, entityID, detail string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO audit_log (actor, action, entity, entity_id, detail)
		VALUES (?, ?, ?, ?, ?)`,
		actor, action, entity, entityID, detail)
	return err
}

// AuditEntry is one stored audit_log row.
type AuditEntry struct {
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entityId"`
	Detail    string `json:"detail"`
	CreatedAt string `json:"createdAt"`
}

// LoadAuditLog lists the audit rows of one entity, oldest first.
func (s *Store) LoadAuditLog(ctx context.Context, entityID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT actor, action, entity, entity_id, detail, created_at
		FROM audit_log WHERE entity_id = ? ORDER BY id`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.Actor, &e.Action, &e.Entity, &e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetConfig reads one system_config value; ok is false when unset.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM system_config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetConfig upserts one system_config value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = datetime('now')`,
		key, value)
	return err
}

// toJSON serializes for a TEXT column. encoding/json sorts map keys, which
// keeps stored blobs byte-stable across runs.
func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func fromJSON[T any](raw string) T {
	var v T
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &v)
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
