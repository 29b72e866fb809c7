package pdfparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aistate/aml-engine/internal/textutil"
	"github.com/aistate/aml-engine/pkg/models"
)

// Header-region metadata extraction. All patterns are broad on purpose:
// every Polish bank renders these labels a little differently, so each
// field is matched against both the diacritic and the ASCII-folded line.

var (
	ibanRe = regexp.MustCompile(`(?:PL\s?)?((?:\d[\s]?){26})`)

	periodRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)nr\s+\S+\s*/\s*(\d{2}[./-]\d{2}[./-]\d{2,4})\s*-\s*(\d{2}[./-]\d{2}[./-]\d{2,4})`),
		regexp.MustCompile(`(?i)okres:?\s*(\d{2}[./-]\d{2}[./-]\d{2,4})\s*-\s*(\d{2}[./-]\d{2}[./-]\d{2,4})`),
		regexp.MustCompile(`(?i)za okres\s+(\d{2}[./-]\d{2}[./-]\d{2,4})\s+do\s+(\d{2}[./-]\d{2}[./-]\d{2,4})`),
		regexp.MustCompile(`(?i)wyciag za\s+(\d{2}[./-]\d{2}[./-]\d{2,4})\s*-\s*(\d{2}[./-]\d{2}[./-]\d{2,4})`),
	}

	amountTailRe = regexp.MustCompile(`-?\d[\d\s.,]*\d(?:\s*(?:PLN|EUR|USD|GBP|CHF))?\s*$`)

	openingRe   = regexp.MustCompile(`(?i)saldo poczatkowe|saldo otwarcia|saldo koncowe poprzedniego wyciagu`)
	closingRe   = regexp.MustCompile(`(?i)saldo koncowe|saldo zamkniecia`)
	availableRe = regexp.MustCompile(`(?i)saldo dostepne|dostepne srodki`)
	prevRe      = regexp.MustCompile(`(?i)poprzedniego`)

	creditsRe = regexp.MustCompile(`(?i)(?:suma )?uznan[ia]?\s*\((\d+)\)\s*:?\s*(-?\d[\d\s.,]*\d)`)
	debitsRe  = regexp.MustCompile(`(?i)(?:suma )?obciazen[ia]?\s*\((\d+)\)\s*:?\s*(-?\d[\d\s.,]*\d)`)

	currencyRe = regexp.MustCompile(`(?i)waluta:?\s*([A-Z]{3})`)

	holderRe = regexp.MustCompile(`(?i)(?:wlasciciel|posiadacz|dane posiadacza)\s*:?\s*((?:\p{Lu}[\p{L}.-]*\s+){1,3}\p{Lu}[\p{L}.-]*)`)

	bankPatterns = []struct {
		id, name, pattern string
	}{
		{"mbank", "mBank", "mbank"},
		{"pko", "PKO Bank Polski", "pko bp|pko bank|ipko"},
		{"ing", "ING Bank Śląski", "ing bank|ingbank"},
		{"santander", "Santander Bank Polska", "santander"},
		{"pekao", "Bank Pekao", "pekao"},
		{"millennium", "Bank Millennium", "millennium"},
		{"alior", "Alior Bank", "alior"},
		{"bnp", "BNP Paribas", "bnp paribas"},
	}
)

// ExtractInfoCommon pulls statement metadata out of reconstructed text
// lines (typically the region above the transaction table).
func ExtractInfoCommon(lines []string) models.StatementInfo {
	info := models.StatementInfo{Currency: "PLN"}

	folded := make([]string, len(lines))
	for i, l := range lines {
		folded[i] = strings.ToLower(textutil.FoldASCII(l))
	}
	combined := strings.Join(folded, "\n")

	detectBank(&info, combined)

	for i, line := range folded {
		if info.AccountIBAN == "" {
			if m := ibanRe.FindStringSubmatch(lines[i]); m != nil {
				digits := strings.Join(strings.Fields(m[1]), "")
				if len(digits) == 26 {
					info.AccountIBAN = maskIBAN(digits)
				}
			}
		}

		if info.PeriodStart == "" {
			for _, re := range periodRes {
				if m := re.FindStringSubmatch(line); m != nil {
					if start, err := models.NormalizeDate(m[1]); err == nil {
						if end, err := models.NormalizeDate(m[2]); err == nil {
							info.PeriodStart, info.PeriodEnd = start, end
						}
					}
					break
				}
			}
		}

		// Balance labels: amount on the same line or within the next 2.
		if info.OpeningBalance == nil && openingRe.MatchString(line) {
			info.OpeningBalance = amountNear(folded, i)
		}
		if info.ClosingBalance == nil && closingRe.MatchString(line) && !prevRe.MatchString(line) {
			// "saldo końcowe poprzedniego wyciągu" is the opening balance,
			// never the closing one.
			if !openingRe.MatchString(line) {
				info.ClosingBalance = amountNear(folded, i)
			}
		}
		if info.AvailableBalance == nil && availableRe.MatchString(line) {
			info.AvailableBalance = amountNear(folded, i)
		}

		if info.DeclaredCreditsSum == nil {
			if m := creditsRe.FindStringSubmatch(line); m != nil {
				if count, err := strconv.Atoi(m[1]); err == nil {
					if amt, err := models.ParseAmount(m[2]); err == nil {
						info.DeclaredCreditsCount = &count
						info.DeclaredCreditsSum = &amt
					}
				}
			}
		}
		if info.DeclaredDebitsSum == nil {
			if m := debitsRe.FindStringSubmatch(line); m != nil {
				if count, err := strconv.Atoi(m[1]); err == nil {
					if amt, err := models.ParseAmount(m[2]); err == nil {
						abs := amt.Abs()
						info.DeclaredDebitsCount = &count
						info.DeclaredDebitsSum = &abs
					}
				}
			}
		}

		if m := currencyRe.FindStringSubmatch(lines[i]); m != nil {
			info.Currency = strings.ToUpper(m[1])
		}

		if info.AccountHolder == "" {
			// Folded form so "Właściciel" and "Wlasciciel" both label the
			// holder; the captured name keeps its original casing minus
			// diacritics, which is how banks print it anyway.
			if m := holderRe.FindStringSubmatch(textutil.FoldASCII(lines[i])); m != nil {
				info.AccountHolder = textutil.CollapseWhitespace(m[1])
			}
		}
	}

	return info
}

func detectBank(info *models.StatementInfo, combined string) {
	for _, b := range bankPatterns {
		if regexp.MustCompile(b.pattern).MatchString(combined) {
			info.BankID = b.id
			info.BankName = b.name
			return
		}
	}
	info.BankID = "unknown"
	info.BankName = "Nieznany bank"
}

// amountNear finds an amount on the labeled line or within the next two
// lines; bank layouts often put the number on its own line.
func amountNear(lines []string, idx int) *models.Money {
	for i := idx; i < len(lines) && i <= idx+2; i++ {
		m := amountTailRe.FindString(lines[i])
		if m == "" {
			continue
		}
		if amt, err := models.ParseAmount(m); err == nil {
			return &amt
		}
	}
	return nil
}

// maskIBAN keeps the first 2 and last 4 digits visible.
func maskIBAN(digits string) string {
	if len(digits) < 10 {
		return digits
	}
	return digits[:2] + strings.Repeat("*", len(digits)-6) + digits[len(digits)-4:]
}
