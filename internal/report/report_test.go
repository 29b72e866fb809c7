package report

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aistate/aml-engine/pkg/models"
)

func money(s string) models.Money {
	m, _ := decimal.NewFromString(s)
	return m
}

func sampleData() *Data {
	return &Data{
		CaseName: "Sprawa 42",
		Info: models.StatementInfo{
			BankName:      "mBank",
			AccountIBAN:   "PL** **** 1234",
			AccountHolder: "Jan Kowalski",
			PeriodStart:   "2024-01-01",
			PeriodEnd:     "2024-01-31",
		},
		Result: &models.PipelineResult{
			Status:           "ok",
			TransactionCount: 3,
			RiskScore:        25,
			BalanceValid:     true,
			Warnings:         []string{"łańcuch sald przerwany na transakcji 1"},
		},
		Transactions: []models.NormalizedTransaction{
			{
				RawTransaction:    models.RawTransaction{Date: "2024-01-05", Amount: money("-500.00")},
				CounterpartyClean: "ZONDA SP Z O O",
				Category:          "crypto",
				RiskTags:          []string{"crypto"},
			},
			{
				RawTransaction:    models.RawTransaction{Date: "2024-01-10", Amount: money("5000.00")},
				CounterpartyClean: "PRACODAWCA SA",
			},
		},
		Alerts: []models.Alert{
			{AlertType: "P2P_BURST", Severity: models.SeverityMedium, Explain: "6 przelewów P2P w ciągu 7 dni"},
		},
		Reasons: []models.RiskReason{
			{Tag: "crypto", Count: 1, Amount: money("500.00"), PctOfTotal: 9.1, ScoreDelta: 22.7},
		},
		GeneratedAt: "2024-02-01 12:00",
	}
}

func TestRenderContainsCoreSections(t *testing.T) {
	html, err := Render(sampleData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		"Sprawa 42",
		"mBank",
		"Jan Kowalski",
		"25 / 100",
		"P2P_BURST",
		"ZONDA SP Z O O",
		"łańcuch sald przerwany",
		"-500.00",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
	// Only the flagged transaction shows in the flagged table.
	if strings.Contains(html, "PRACODAWCA SA") {
		t.Error("untagged transaction should not be listed")
	}
}

func TestRenderEscapesHTML(t *testing.T) {
	data := sampleData()
	data.Transactions[0].CounterpartyClean = `<script>alert("x")</script>`
	html, err := Render(data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("counterparty text must be escaped")
	}
}

func TestRiskClass(t *testing.T) {
	tests := []struct {
		score int
		class string
	}{
		{0, "risk-none"},
		{10, "risk-low"},
		{40, "risk-medium"},
		{85, "risk-high"},
	}
	for _, tt := range tests {
		d := &Data{Result: &models.PipelineResult{RiskScore: tt.score}}
		if got := d.RiskClass(); got != tt.class {
			t.Errorf("RiskClass(%d) = %s, want %s", tt.score, got, tt.class)
		}
	}
}
