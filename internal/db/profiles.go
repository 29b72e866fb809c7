package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/aistate/aml-engine/pkg/models"
)

// Account profiles are the persisted monthly baselines. They feed the
// NEW_COUNTERPARTY detector with history from earlier statements of the
// same case.

// SaveMonthlyProfiles upserts the monthly baselines of a case in one
// transaction.
func (s *Store) SaveMonthlyProfiles(ctx context.Context, caseID string, months map[string]*models.MonthlyProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, month := range keys {
		p := months[month]
		cps := make([]string, 0, len(p.Counterparties))
		for cp := range p.Counterparties {
			cps = append(cps, cp)
		}
		sort.Strings(cps)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO account_profiles
				(id, case_id, month, tx_count, total_credit, total_debit,
				 counterparties, channel_counts, category_totals)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (case_id, month) DO UPDATE SET
				tx_count = excluded.tx_count,
				total_credit = excluded.total_credit,
				total_debit = excluded.total_debit,
				counterparties = excluded.counterparties,
				channel_counts = excluded.channel_counts,
				category_totals = excluded.category_totals`,
			strings.ReplaceAll(uuid.NewString(), "-", ""), caseID, month,
			p.TxCount, models.AmountString(p.TotalCredit),
			models.AmountString(p.TotalDebit), toJSON(cps),
			toJSON(channelCountsJSON(p.ChannelCounts)),
			toJSON(categoryTotalsJSON(p.CategoryTotals)))
		if err != nil {
			return fmt.Errorf("failed to save profile %s: %v", month, err)
		}
	}

	detail := toJSON(map[string]any{"months": keys})
	if err := auditRow(ctx, tx, "system", "profiles_saved", "case", caseID, detail); err != nil {
		return fmt.Errorf("failed to append audit row: %v", err)
	}
	return tx.Commit()
}

// LoadHistoricalCounterparties unions the counterparty sets of all stored
// monthly profiles of a case.
func (s *Store) LoadHistoricalCounterparties(ctx context.Context, caseID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT counterparties FROM account_profiles WHERE case_id = ?`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		for _, cp := range fromJSON[[]string](raw) {
			out[cp] = struct{}{}
		}
	}
	return out, rows.Err()
}

func channelCountsJSON(counts map[models.Channel]int) map[string]int {
	out := make(map[string]int, len(counts))
	for ch, n := range counts {
		out[string(ch)] = n
	}
	return out
}

func categoryTotalsJSON(totals map[string]models.Money) map[string]string {
	out := make(map[string]string, len(totals))
	for cat, amt := range totals {
		out[cat] = models.AmountString(amt)
	}
	return out
}
