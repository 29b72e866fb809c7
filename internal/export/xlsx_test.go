package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/aistate/aml-engine/internal/baseline"
	"github.com/aistate/aml-engine/pkg/models"
)

func money(s string) models.Money {
	m, _ := decimal.NewFromString(s)
	return m
}

func TestWriteXLSX(t *testing.T) {
	txns := []models.NormalizedTransaction{
		{
			ID:                "t1",
			RawTransaction:    models.RawTransaction{Date: "2024-01-05", Amount: money("-150.00"), Currency: "PLN"},
			CounterpartyClean: "BIEDRONKA",
			TitleClean:        "Zakupy",
			Channel:           models.ChannelCard,
			RiskTags:          []string{"crypto", "RISK:CRYPTO_RELATED"},
			RiskScore:         25,
			IsRecurring:       true,
		},
		{
			ID:                "t2",
			RawTransaction:    models.RawTransaction{Date: "2024-01-10", Amount: money("5000.00"), Currency: "PLN"},
			CounterpartyClean: "PRACODAWCA SA",
			Channel:           models.ChannelTransfer,
		},
	}
	b := baseline.Build(txns)
	alerts := []models.Alert{
		{AlertType: "P2P_BURST", Severity: models.SeverityMedium, Explain: "burst", ScoreDelta: 15},
		{AlertType: "LARGE_OUTLIER", Severity: models.SeverityHigh, Explain: "outlier", ScoreDelta: 20},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, txns, b, alerts); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{sheetTransactions, sheetMonthly, sheetAlerts} {
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			t.Errorf("sheet %s missing", sheet)
		}
	}

	rows, err := f.GetRows(sheetTransactions)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("transaction rows = %d, want header + 2", len(rows))
	}
	if rows[1][3] != "BIEDRONKA" {
		t.Errorf("row 1 counterparty = %q", rows[1][3])
	}
	if rows[1][7] != "crypto, RISK:CRYPTO_RELATED" {
		t.Errorf("row 1 tags = %q", rows[1][7])
	}
	if rows[1][9] != "tak" {
		t.Errorf("row 1 recurring = %q", rows[1][9])
	}

	monthly, err := f.GetRows(sheetMonthly)
	if err != nil {
		t.Fatalf("GetRows monthly: %v", err)
	}
	if len(monthly) != 2 || monthly[1][0] != "2024-01" {
		t.Fatalf("monthly rows = %v", monthly)
	}

	alertRows, err := f.GetRows(sheetAlerts)
	if err != nil {
		t.Fatalf("GetRows alerts: %v", err)
	}
	if len(alertRows) != 3 {
		t.Fatalf("alert rows = %d", len(alertRows))
	}
	// High severity sorts before medium.
	if alertRows[1][0] != "LARGE_OUTLIER" {
		t.Errorf("first alert = %q, want the high-severity one", alertRows[1][0])
	}
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, nil, baseline.Build(nil), nil); err != nil {
		t.Fatalf("WriteXLSX on empty case: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty workbook should still serialize")
	}
}
