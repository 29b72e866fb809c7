package reconcile

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aistate/aml-engine/pkg/models"
)

func money(s string) models.Money { return decimal.RequireFromString(s) }

func moneyPtr(s string) *models.Money {
	m := money(s)
	return &m
}

func intPtr(n int) *int { return &n }

func happyStatement() (models.StatementInfo, []models.RawTransaction) {
	info := models.StatementInfo{
		OpeningBalance: moneyPtr("1000.00"),
		ClosingBalance: moneyPtr("5050.00"),
	}
	txns := []models.RawTransaction{
		{Date: "2024-01-05", Amount: money("-150.00"), BalanceAfter: moneyPtr("850.00")},
		{Date: "2024-01-10", Amount: money("5000.00"), BalanceAfter: moneyPtr("5850.00")},
		{Date: "2024-01-15", Amount: money("-800.00"), BalanceAfter: moneyPtr("5050.00")},
	}
	return info, txns
}

func TestReconcileHappyPath(t *testing.T) {
	info, txns := happyStatement()
	res := Reconcile(info, txns)
	if !res.Valid {
		t.Errorf("Expected valid statement, warnings: %v", res.Warnings)
	}
}

func TestReconcileClosingMismatch(t *testing.T) {
	info, txns := happyStatement()
	info.ClosingBalance = moneyPtr("4000.00")
	res := Reconcile(info, txns)
	if res.Valid {
		t.Fatalf("Expected invalid statement")
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "nie bilansuje") {
		t.Errorf("Expected balance warning, got %v", res.Warnings)
	}
}

func TestReconcileToleratesRounding(t *testing.T) {
	info, txns := happyStatement()
	info.ClosingBalance = moneyPtr("5050.02")
	res := Reconcile(info, txns)
	if !res.Valid {
		t.Errorf("±0.02 must be tolerated, warnings: %v", res.Warnings)
	}
}

func TestBalanceChainBreakMentionsIndex(t *testing.T) {
	info, txns := happyStatement()
	txns[1].BalanceAfter = moneyPtr("5950.00") // off by 100.00
	res := Reconcile(info, txns)

	if res.Valid {
		t.Fatalf("Expected invalid statement")
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "transakcji 1") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected chain-break warning mentioning transaction 1, got %v", res.Warnings)
	}
}

func TestChainBreaksAggregateAfterFive(t *testing.T) {
	info := models.StatementInfo{}
	var txns []models.RawTransaction
	balance := money("0.00")
	for i := 0; i < 10; i++ {
		// A growing offset keeps every chain step inconsistent.
		balance = balance.Add(money("10.00"))
		bad := balance.Add(decimal.NewFromInt(int64(i * 3)))
		txns = append(txns, models.RawTransaction{Amount: money("10.00"), BalanceAfter: &bad})
	}
	res := Reconcile(info, txns)

	details, aggregated := 0, false
	for _, w := range res.Warnings {
		if strings.Contains(w, "łańcuch sald przerwany") {
			details++
		}
		if strings.Contains(w, "dalszych przerwań") {
			aggregated = true
		}
	}
	if details != 5 {
		t.Errorf("Expected 5 detailed chain warnings, got %d", details)
	}
	if !aggregated {
		t.Errorf("Expected an aggregate warning for the remaining breaks")
	}
}

func TestDeclaredSumsAndCounts(t *testing.T) {
	info, txns := happyStatement()
	info.DeclaredCreditsSum = moneyPtr("5000.00")
	info.DeclaredCreditsCount = intPtr(1)
	info.DeclaredDebitsSum = moneyPtr("950.00")
	info.DeclaredDebitsCount = intPtr(2)
	if res := Reconcile(info, txns); !res.Valid {
		t.Errorf("Declared totals match, expected valid, got %v", res.Warnings)
	}

	info.DeclaredDebitsCount = intPtr(3)
	info.DeclaredDebitsSum = moneyPtr("999.00")
	res := Reconcile(info, txns)
	if res.Valid || len(res.Warnings) != 2 {
		t.Errorf("Expected 2 warnings (sum + count), got %v", res.Warnings)
	}
}
