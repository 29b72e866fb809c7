package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aistate/aml-engine/pkg/models"
)

// StatementMeta carries the per-statement flags persisted next to the
// parsed header info.
type StatementMeta struct {
	PDFHash      string
	BalanceValid bool
	OCRUsed      bool
	Warnings     []string
	// Replace drops prior statements with the same pdf_hash in the case.
	// Without it a re-analysis coexists with the earlier one.
	Replace bool
}

// CreateCase inserts a case row if it does not exist yet.
func (s *Store) CreateCase(ctx context.Context, caseID, projectID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (id, project_id, name)
		VALUES (?, NULLIF(?, ''), ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			updated_at = datetime('now')`,
		caseID, projectID, name)
	return err
}

// DeleteCase removes a case with everything hanging off it: statements,
// transactions, classifications, assessments, graph rows. Counterparty
// memory is shared across cases and survives.
func (s *Store) DeleteCase(ctx context.Context, caseID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cases WHERE id = ?`, caseID)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("case not found: %s", caseID)
	}
	return nil
}

// SaveStatement persists one parsed statement with its transactions and
// classifications in a single transaction.
func (s *Store) SaveStatement(ctx context.Context, caseID, statementID string, info models.StatementInfo, meta StatementMeta, txns []models.NormalizedTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if meta.Replace {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM statements WHERE case_id = ? AND pdf_hash = ?`,
			caseID, meta.PDFHash)
		if err != nil {
			return fmt.Errorf("failed to clear prior statement: %v", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statements
			(id, case_id, pdf_hash, bank, bank_name, iban_masked, account_holder,
			 period_start, period_end, opening_balance, closing_balance, currency,
			 balance_valid, ocr_used, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		statementID, caseID, meta.PDFHash, info.BankID, info.BankName,
		info.AccountIBAN, info.AccountHolder, info.PeriodStart, info.PeriodEnd,
		moneyOrNull(info.OpeningBalance), moneyOrNull(info.ClosingBalance),
		info.Currency, boolToInt(meta.BalanceValid), boolToInt(meta.OCRUsed),
		toJSON(meta.Warnings))
	if err != nil {
		return fmt.Errorf("failed to insert statement: %v", err)
	}

	for i := range txns {
		txn := &txns[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions
				(id, statement_id, tx_hash, date, value_date, amount, currency,
				 balance_after, counterparty_raw, counterparty_clean, counterparty_id,
				 title, raw_text, bank_category, channel, is_recurring,
				 recurring_group, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?)`,
			txn.ID, statementID, txn.TxHash, txn.Date, txn.ValueDate,
			models.AmountString(txn.Amount), txn.Currency,
			moneyOrNull(txn.BalanceAfter), txn.CounterpartyRaw,
			txn.CounterpartyClean, txn.CounterpartyID, txn.TitleClean,
			txn.RawText, txn.BankCategory, string(txn.Channel),
			boolToInt(txn.IsRecurring), txn.RecurringGroup, i)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %d: %v", i, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO tx_classifications
				(transaction_id, category, subcategory, risk_tags, risk_score,
				 rule_explains, is_whitelisted, is_blacklisted, urls)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.ID, txn.Category, txn.Subcategory, toJSON(txn.RiskTags),
			txn.RiskScore, toJSON(txn.RuleExplains),
			boolToInt(txn.IsWhitelisted), boolToInt(txn.IsBlacklisted),
			toJSON(txn.URLs))
		if err != nil {
			return fmt.Errorf("failed to insert classification %d: %v", i, err)
		}
	}

	detail := toJSON(map[string]any{
		"bank":         info.BankID,
		"txCount":      len(txns),
		"balanceValid": meta.BalanceValid,
		"ocrUsed":      meta.OCRUsed,
		"warnings":     meta.Warnings,
	})
	if err := auditRow(ctx, tx, "system", "statement_saved", "statement", statementID, detail); err != nil {
		return fmt.Errorf("failed to append audit row: %v", err)
	}

	return tx.Commit()
}

// FindStatementByHash returns the statement id for a (case, pdf_hash)
// pair, if one was analyzed before.
func (s *Store) FindStatementByHash(ctx context.Context, caseID, pdfHash string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM statements WHERE case_id = ? AND pdf_hash = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		caseID, pdfHash).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// LoadTransactions reads back the normalized transactions of a statement
// in parser order, classifications joined in.
func (s *Store) LoadTransactions(ctx context.Context, statementID string) ([]models.NormalizedTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.tx_hash, t.date, t.value_date, t.amount, t.currency,
		       t.balance_after, t.counterparty_raw, t.counterparty_clean,
		       COALESCE(t.counterparty_id, ''), t.title, t.raw_text,
		       t.bank_category, t.channel, t.is_recurring, t.recurring_group,
		       c.category, c.subcategory, c.risk_tags, c.risk_score,
		       c.rule_explains, c.is_whitelisted, c.is_blacklisted, c.urls
		FROM transactions t
		JOIN tx_classifications c ON c.transaction_id = t.id
		WHERE t.statement_id = ?
		ORDER BY t.position`, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NormalizedTransaction
	for rows.Next() {
		var txn models.NormalizedTransaction
		var amount, channel, riskTags, explains, urls string
		var balanceAfter sql.NullString
		var isRecurring, isWhitelisted, isBlacklisted int
		err := rows.Scan(&txn.ID, &txn.TxHash, &txn.Date, &txn.ValueDate,
			&amount, &txn.Currency, &balanceAfter, &txn.CounterpartyRaw,
			&txn.CounterpartyClean, &txn.CounterpartyID, &txn.TitleClean,
			&txn.RawText, &txn.BankCategory, &channel, &isRecurring,
			&txn.RecurringGroup, &txn.Category, &txn.Subcategory, &riskTags,
			&txn.RiskScore, &explains, &isWhitelisted, &isBlacklisted, &urls)
		if err != nil {
			return nil, err
		}
		txn.StatementID = statementID
		if txn.Amount, err = models.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("bad stored amount %q: %v", amount, err)
		}
		if balanceAfter.Valid {
			b, err := models.ParseAmount(balanceAfter.String)
			if err != nil {
				return nil, fmt.Errorf("bad stored balance %q: %v", balanceAfter.String, err)
			}
			txn.BalanceAfter = &b
		}
		txn.Channel = models.Channel(channel)
		txn.IsRecurring = isRecurring != 0
		txn.IsWhitelisted = isWhitelisted != 0
		txn.IsBlacklisted = isBlacklisted != 0
		txn.RiskTags = fromJSON[[]string](riskTags)
		txn.RuleExplains = fromJSON[[]models.RuleExplain](explains)
		txn.URLs = fromJSON[[]string](urls)
		txn.Title = txn.TitleClean
		out = append(out, txn)
	}
	return out, rows.Err()
}

func moneyOrNull(m *models.Money) any {
	if m == nil {
		return nil
	}
	return models.AmountString(*m)
}
