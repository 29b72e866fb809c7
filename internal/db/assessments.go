package db

import (
	"context"
	"fmt"

	"github.com/aistate/aml-engine/pkg/models"
)

// SaveRiskAssessment persists the aggregate score, reasons and alerts for
// one analyzed statement.
func (s *Store) SaveRiskAssessment(ctx context.Context, id, caseID, statementID string, riskScore int, reasons []models.RiskReason, alerts []models.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO risk_assessments (id, case_id, statement_id, risk_score, risk_reasons, alerts)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			risk_score = excluded.risk_score,
			risk_reasons = excluded.risk_reasons,
			alerts = excluded.alerts`,
		id, caseID, statementID, riskScore, toJSON(reasons), toJSON(alerts))
	if err != nil {
		return fmt.Errorf("failed to save risk assessment: %v", err)
	}

	detail := toJSON(map[string]any{"riskScore": riskScore, "alerts": len(alerts)})
	if err := auditRow(ctx, tx, "system", "assessment_saved", "case", caseID, detail); err != nil {
		return fmt.Errorf("failed to append audit row: %v", err)
	}
	return tx.Commit()
}

// Assessment is one stored risk assessment row.
type Assessment struct {
	ID          string              `json:"id"`
	CaseID      string              `json:"caseId"`
	StatementID string              `json:"statementId"`
	RiskScore   int                 `json:"riskScore"`
	RiskReasons []models.RiskReason `json:"riskReasons"`
	Alerts      []models.Alert      `json:"alerts"`
	CreatedAt   string              `json:"createdAt"`
}

// LoadAssessments lists the assessments of a case, newest first.
func (s *Store) LoadAssessments(ctx context.Context, caseID string) ([]Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, COALESCE(statement_id, ''), risk_score,
		       risk_reasons, alerts, created_at
		FROM risk_assessments WHERE case_id = ?
		ORDER BY created_at DESC, id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assessment
	for rows.Next() {
		var a Assessment
		var reasons, alerts string
		if err := rows.Scan(&a.ID, &a.CaseID, &a.StatementID, &a.RiskScore, &reasons, &alerts, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.RiskReasons = fromJSON[[]models.RiskReason](reasons)
		a.Alerts = fromJSON[[]models.Alert](alerts)
		out = append(out, a)
	}
	return out, rows.Err()
}
