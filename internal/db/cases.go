package db

import (
	"context"
	"database/sql"

	"github.com/aistate/aml-engine/pkg/models"
)

// CaseSummary is the list-view projection of a case.
type CaseSummary struct {
	ID             string `json:"id"`
	ProjectID      string `json:"projectId,omitempty"`
	Name           string `json:"name"`
	StatementCount int    `json:"statementCount"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

// StatementSummary is the list-view projection of one analyzed statement.
type StatementSummary struct {
	ID           string `json:"id"`
	Bank         string `json:"bank"`
	BankName     string `json:"bankName"`
	PeriodStart  string `json:"periodStart"`
	PeriodEnd    string `json:"periodEnd"`
	BalanceValid bool   `json:"balanceValid"`
	OCRUsed      bool   `json:"ocrUsed"`
	CreatedAt    string `json:"createdAt"`
}

// ListCases returns all cases, newest first.
func (s *Store) ListCases(ctx context.Context) ([]CaseSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, COALESCE(c.project_id, ''), c.name,
		       (SELECT COUNT(*) FROM statements st WHERE st.case_id = c.id),
		       c.created_at, c.updated_at
		FROM cases c
		ORDER BY c.updated_at DESC, c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaseSummary
	for rows.Next() {
		var cs CaseSummary
		if err := rows.Scan(&cs.ID, &cs.ProjectID, &cs.Name, &cs.StatementCount,
			&cs.CreatedAt, &cs.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// GetCase loads one case summary, reporting existence separately.
func (s *Store) GetCase(ctx context.Context, caseID string) (CaseSummary, bool, error) {
	var cs CaseSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, COALESCE(c.project_id, ''), c.name,
		       (SELECT COUNT(*) FROM statements st WHERE st.case_id = c.id),
		       c.created_at, c.updated_at
		FROM cases c WHERE c.id = ?`, caseID).
		Scan(&cs.ID, &cs.ProjectID, &cs.Name, &cs.StatementCount,
			&cs.CreatedAt, &cs.UpdatedAt)
	if err == sql.ErrNoRows {
		return CaseSummary{}, false, nil
	}
	if err != nil {
		return CaseSummary{}, false, err
	}
	return cs, true, nil
}

// ListStatements returns the statements of a case, newest first.
func (s *Store) ListStatements(ctx context.Context, caseID string) ([]StatementSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bank, bank_name, period_start, period_end,
		       balance_valid, ocr_used, created_at
		FROM statements
		WHERE case_id = ?
		ORDER BY created_at DESC, id DESC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatementSummary
	for rows.Next() {
		var st StatementSummary
		var balanceValid, ocrUsed int
		if err := rows.Scan(&st.ID, &st.Bank, &st.BankName, &st.PeriodStart,
			&st.PeriodEnd, &balanceValid, &ocrUsed, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.BalanceValid = balanceValid != 0
		st.OCRUsed = ocrUsed != 0
		out = append(out, st)
	}
	return out, rows.Err()
}

// LoadCaseTransactions reads every transaction in a case, ordered by
// statement creation then parser position.
func (s *Store) LoadCaseTransactions(ctx context.Context, caseID string) ([]models.NormalizedTransaction, error) {
	stmts, err := s.ListStatements(ctx, caseID)
	if err != nil {
		return nil, err
	}
	var out []models.NormalizedTransaction
	for i := len(stmts) - 1; i >= 0; i-- {
		txns, err := s.LoadTransactions(ctx, stmts[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, txns...)
	}
	return out, nil
}
