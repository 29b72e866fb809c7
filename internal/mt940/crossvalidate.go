package mt940

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aistate/aml-engine/pkg/models"
)

// Cross-validation between an MT940 export and a PDF parse of the same
// statement. Purely diagnostic: mismatches never fail a parse, they are
// surfaced so an analyst can see which source to trust.

var matchTolerance = decimal.RequireFromString("0.01")

// CrossValidation is the diagnostic report of comparing two parses.
type CrossValidation struct {
	Matches    int      `json:"matches"`
	MT940Only  int      `json:"mt940Only"`
	PDFOnly    int      `json:"pdfOnly"`
	BalancesOK bool     `json:"balancesOk"`
	Notes      []string `json:"notes,omitempty"`
}

// CrossValidate pairs transactions by (date, amount) within 0.01 and checks
// the two sources' balances against each other.
func CrossValidate(mt *Statement, pdfTxns []models.RawTransaction, pdfInfo models.StatementInfo) CrossValidation {
	cv := CrossValidation{BalancesOK: true}

	used := make([]bool, len(pdfTxns))
	for _, mtxn := range mt.Transactions {
		found := false
		for i, ptxn := range pdfTxns {
			if used[i] || ptxn.Date != mtxn.Date {
				continue
			}
			if ptxn.Amount.Sub(mtxn.Amount).Abs().Cmp(matchTolerance) <= 0 {
				used[i] = true
				found = true
				break
			}
		}
		if found {
			cv.Matches++
		} else {
			cv.MT940Only++
		}
	}
	for _, u := range used {
		if !u {
			cv.PDFOnly++
		}
	}

	checkBalance := func(name string, a, b *models.Money) {
		if a == nil || b == nil {
			return
		}
		if !models.WithinTolerance(*a, *b) {
			cv.BalancesOK = false
			cv.Notes = append(cv.Notes, fmt.Sprintf(
				"%s differs: MT940 %s vs PDF %s", name,
				models.AmountString(*a), models.AmountString(*b)))
		}
	}
	checkBalance("opening balance", mt.Info.OpeningBalance, pdfInfo.OpeningBalance)
	checkBalance("closing balance", mt.Info.ClosingBalance, pdfInfo.ClosingBalance)

	if cv.MT940Only > 0 || cv.PDFOnly > 0 {
		cv.Notes = append(cv.Notes, fmt.Sprintf(
			"%d transactions only in MT940, %d only in PDF", cv.MT940Only, cv.PDFOnly))
	}
	return cv
}
