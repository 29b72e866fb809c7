package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/aistate/aml-engine/internal/baseline"
	"github.com/aistate/aml-engine/pkg/models"
)

// XLSX case export: one workbook with transactions, a monthly summary and
// the alert list. Column layout mirrors what analysts expect to pivot on.

const (
	sheetTransactions = "Transakcje"
	sheetMonthly      = "Podsumowanie"
	sheetAlerts       = "Alerty"
)

// WriteXLSX renders the workbook to w.
func WriteXLSX(w io.Writer, txns []models.NormalizedTransaction, b *baseline.Baseline, alerts []models.Alert) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeTransactions(f, txns); err != nil {
		return err
	}
	if err := writeMonthly(f, b); err != nil {
		return err
	}
	if err := writeAlerts(f, alerts); err != nil {
		return err
	}

	// The default sheet excelize creates is replaced by ours.
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(sheetTransactions); err == nil {
		f.SetActiveSheet(idx)
	}
	return f.Write(w)
}

func writeTransactions(f *excelize.File, txns []models.NormalizedTransaction) error {
	if _, err := f.NewSheet(sheetTransactions); err != nil {
		return fmt.Errorf("failed to create sheet: %v", err)
	}
	header := []any{"Data", "Kwota", "Waluta", "Kontrahent", "Tytuł", "Kanał",
		"Kategoria", "Znaczniki ryzyka", "Ocena", "Cykliczna"}
	if err := f.SetSheetRow(sheetTransactions, "A1", &header); err != nil {
		return err
	}
	for i := range txns {
		txn := &txns[i]
		tags := ""
		for j, tag := range txn.RiskTags {
			if j > 0 {
				tags += ", "
			}
			tags += tag
		}
		recurring := ""
		if txn.IsRecurring {
			recurring = "tak"
		}
		amount, _ := txn.Amount.Float64()
		row := []any{txn.Date, amount, txn.Currency, txn.CounterpartyClean,
			txn.TitleClean, string(txn.Channel), txn.Category, tags,
			txn.RiskScore, recurring}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetTransactions, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeMonthly(f *excelize.File, b *baseline.Baseline) error {
	if _, err := f.NewSheet(sheetMonthly); err != nil {
		return fmt.Errorf("failed to create sheet: %v", err)
	}
	header := []any{"Miesiąc", "Transakcje", "Wpływy", "Wydatki", "Saldo miesiąca", "Kontrahenci"}
	if err := f.SetSheetRow(sheetMonthly, "A1", &header); err != nil {
		return err
	}
	for i, month := range b.SortedMonths() {
		p := b.Months[month]
		credit, _ := p.TotalCredit.Float64()
		debit, _ := p.TotalDebit.Float64()
		net, _ := p.TotalCredit.Sub(p.TotalDebit).Float64()
		row := []any{month, p.TxCount, credit, debit, net, len(p.Counterparties)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetMonthly, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeAlerts(f *excelize.File, alerts []models.Alert) error {
	if _, err := f.NewSheet(sheetAlerts); err != nil {
		return fmt.Errorf("failed to create sheet: %v", err)
	}
	header := []any{"Typ", "Waga", "Opis", "Wpływ na ocenę", "Dowody"}
	if err := f.SetSheetRow(sheetAlerts, "A1", &header); err != nil {
		return err
	}
	rank := map[string]int{
		models.SeverityCritical: 4, models.SeverityHigh: 3,
		models.SeverityMedium: 2, models.SeverityLow: 1,
	}
	sorted := make([]models.Alert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(a, b int) bool {
		return rank[sorted[a].Severity] > rank[sorted[b].Severity]
	})
	for i := range sorted {
		a := &sorted[i]
		row := []any{a.AlertType, a.Severity, a.Explain, a.ScoreDelta, len(a.EvidenceTxIDs)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetAlerts, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
