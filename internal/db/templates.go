package db

import (
	"database/sql"
	"log"

	"github.com/aistate/aml-engine/internal/pdfparse"
)

// TemplateStore adapts the store to the parser's template interface.
// Lookups key on (bank, header key) so one bank can carry several
// statement layouts.

func templateKey(bankID, headerKey string) string {
	return bankID + "|" + headerKey
}

// FindTemplate returns a previously confirmed column layout.
func (s *Store) FindTemplate(bankID, headerKey string) ([]pdfparse.Column, bool) {
	var raw string
	err := s.db.QueryRow(
		`SELECT columns FROM parse_templates WHERE header_key = ?`,
		templateKey(bankID, headerKey)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		log.Printf("[DB] Template lookup failed: %v", err)
		return nil, false
	}
	cols := fromJSON[[]pdfparse.Column](raw)
	if len(cols) == 0 {
		return nil, false
	}
	return cols, true
}

// SaveTemplate upserts a confirmed column layout.
func (s *Store) SaveTemplate(bankID, headerKey string, cols []pdfparse.Column) error {
	_, err := s.db.Exec(`
		INSERT INTO parse_templates (header_key, bank, columns)
		VALUES (?, ?, ?)
		ON CONFLICT (header_key) DO UPDATE SET
			columns = excluded.columns,
			updated_at = datetime('now')`,
		templateKey(bankID, headerKey), bankID, toJSON(cols))
	return err
}
