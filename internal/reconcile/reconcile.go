package reconcile

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/aistate/aml-engine/pkg/models"
)

// Reconciler cross-checks a parsed statement against its own declared
// numbers: opening/closing balances, the per-transaction balance chain and
// the declared credit/debit sums and counts. Every failed check produces a
// warning; none of them blocks downstream processing. The warnings end up
// in the audit trail and the report.

const maxChainDetails = 5

// Result is the outcome of reconciling one statement.
type Result struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings,omitempty"`
}

// Reconcile verifies the statement invariants to ±0.02.
func Reconcile(info models.StatementInfo, txns []models.RawTransaction) Result {
	var warnings []string

	sum := decimal.Zero
	creditSum, debitSum := decimal.Zero, decimal.Zero
	creditCount, debitCount := 0, 0
	for _, txn := range txns {
		sum = sum.Add(txn.Amount)
		if txn.Amount.Sign() >= 0 {
			creditSum = creditSum.Add(txn.Amount)
			creditCount++
		} else {
			debitSum = debitSum.Add(txn.Amount.Abs())
			debitCount++
		}
	}

	// Check 1: opening + Σamount = closing.
	if info.OpeningBalance != nil && info.ClosingBalance != nil {
		expected := info.OpeningBalance.Add(sum)
		if !models.WithinTolerance(expected, *info.ClosingBalance) {
			warnings = append(warnings, fmt.Sprintf(
				"saldo nie bilansuje się: otwarcie %s + obroty %s = %s, wyciąg deklaruje %s",
				models.AmountString(*info.OpeningBalance), models.AmountString(sum),
				models.AmountString(expected), models.AmountString(*info.ClosingBalance)))
		}
	}

	// Check 2: per-transaction balance chain.
	warnings = append(warnings, checkBalanceChain(txns)...)

	// Check 3: declared sums.
	if info.DeclaredCreditsSum != nil && !models.WithinTolerance(creditSum, *info.DeclaredCreditsSum) {
		warnings = append(warnings, fmt.Sprintf(
			"suma uznań %s różni się od zadeklarowanej %s",
			models.AmountString(creditSum), models.AmountString(*info.DeclaredCreditsSum)))
	}
	if info.DeclaredDebitsSum != nil && !models.WithinTolerance(debitSum, *info.DeclaredDebitsSum) {
		warnings = append(warnings, fmt.Sprintf(
			"suma obciążeń %s różni się od zadeklarowanej %s",
			models.AmountString(debitSum), models.AmountString(*info.DeclaredDebitsSum)))
	}

	// Check 4: declared counts.
	if info.DeclaredCreditsCount != nil && creditCount != *info.DeclaredCreditsCount {
		warnings = append(warnings, fmt.Sprintf(
			"liczba uznań %d różni się od zadeklarowanej %d", creditCount, *info.DeclaredCreditsCount))
	}
	if info.DeclaredDebitsCount != nil && debitCount != *info.DeclaredDebitsCount {
		warnings = append(warnings, fmt.Sprintf(
			"liczba obciążeń %d różni się od zadeklarowanej %d", debitCount, *info.DeclaredDebitsCount))
	}

	if len(warnings) > 0 {
		log.Printf("[Reconciler] %d warnings for account %s", len(warnings), info.AccountIBAN)
	}
	return Result{Valid: len(warnings) == 0, Warnings: warnings}
}

// checkBalanceChain verifies balanceAfter(n) = balanceAfter(n-1) + amount(n)
// wherever consecutive balances are present. The first few breaks are
// reported in detail, the rest as an aggregate count.
func checkBalanceChain(txns []models.RawTransaction) []string {
	var warnings []string
	extra := 0
	var prev *models.Money

	for i, txn := range txns {
		if txn.BalanceAfter == nil {
			continue
		}
		if prev != nil {
			expected := prev.Add(txn.Amount)
			if !models.WithinTolerance(expected, *txn.BalanceAfter) {
				if len(warnings) < maxChainDetails {
					warnings = append(warnings, fmt.Sprintf(
						"łańcuch sald przerwany na transakcji %d: oczekiwano %s, wyciąg podaje %s",
						i, models.AmountString(expected), models.AmountString(*txn.BalanceAfter)))
				} else {
					extra++
				}
			}
		}
		b := *txn.BalanceAfter
		prev = &b
	}

	if extra > 0 {
		warnings = append(warnings, fmt.Sprintf("oraz %d dalszych przerwań łańcucha sald", extra))
	}
	return warnings
}
