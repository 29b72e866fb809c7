package pdfparse

import (
	"log"
	"sort"
	"strings"

	"github.com/aistate/aml-engine/pkg/models"
)

// Transaction band grouping: body words are cut into per-transaction bands
// at every word that (a) falls inside a date-typed column and (b) looks
// like a date. Multi-line descriptions therefore stay attached to their
// transaction row without any line heuristics.

// bodyWords returns the words below the header band, in visual order.
func bodyWords(words []Word, headerPage int, headerY float64) []Word {
	body := make([]Word, 0, len(words))
	for _, w := range words {
		if w.Page < headerPage {
			continue
		}
		if w.Page == headerPage && w.Y >= headerY-1 {
			continue
		}
		body = append(body, w)
	}
	sort.SliceStable(body, func(a, b int) bool {
		if body[a].Page != body[b].Page {
			return body[a].Page < body[b].Page
		}
		if body[a].Y != body[b].Y {
			return body[a].Y > body[b].Y
		}
		return body[a].X < body[b].X
	})
	return body
}

// columnFor returns the column whose widened X range contains the word's
// center, or nil.
func columnFor(cols []Column, w Word) *Column {
	c := w.Center()
	for i := range cols {
		if c >= cols[i].XMin-cellEpsilon && c <= cols[i].XMax+cellEpsilon {
			return &cols[i]
		}
	}
	return nil
}

func isBandStart(cols []Column, w Word) bool {
	col := columnFor(cols, w)
	if col == nil || col.Type != ColDate {
		return false
	}
	return models.DateRe.MatchString(w.Text)
}

// groupBands splits body words into transaction bands.
func groupBands(cols []Column, body []Word) [][]Word {
	var bands [][]Word
	var current []Word
	for _, w := range body {
		if isBandStart(cols, w) {
			if len(current) > 0 {
				bands = append(bands, current)
			}
			current = []Word{w}
			continue
		}
		if current != nil {
			current = append(current, w)
		}
	}
	if len(current) > 0 {
		bands = append(bands, current)
	}
	return bands
}

// bandCells assembles one band's per-column cell strings: words whose X
// center lies within the widened column range, concatenated in Y-order.
func bandCells(cols []Column, band []Word) map[ColumnType]string {
	cells := make(map[ColumnType][]string)
	for _, w := range band {
		col := columnFor(cols, w)
		if col == nil || col.Type == ColSkip {
			continue
		}
		cells[col.Type] = append(cells[col.Type], w.Text)
	}
	out := make(map[ColumnType]string, len(cells))
	for t, parts := range cells {
		out[t] = strings.Join(parts, " ")
	}
	return out
}

// bandToTransaction maps a band's cells to a RawTransaction. Bands with no
// parseable date are discarded silently; bands with no resolvable amount
// are discarded with a warning.
func bandToTransaction(cols []Column, band []Word, warnings *[]string) (models.RawTransaction, bool) {
	cells := bandCells(cols, band)

	dateCell, ok := cells[ColDate]
	if !ok {
		return models.RawTransaction{}, false
	}
	dateStr := models.DateRe.FindString(dateCell)
	if dateStr == "" {
		return models.RawTransaction{}, false
	}
	date, err := models.NormalizeDate(dateStr)
	if err != nil {
		return models.RawTransaction{}, false
	}

	txn := models.RawTransaction{
		Date:            date,
		CounterpartyRaw: cells[ColCounterparty],
		Title:           cells[ColDescription],
		BankCategory:    cells[ColBankType],
		RawText:         bandText(band),
	}

	if vd := models.DateRe.FindString(cells[ColValueDate]); vd != "" {
		if iso, err := models.NormalizeDate(vd); err == nil {
			txn.ValueDate = iso
		}
	}

	amount, ok := resolveAmount(cells)
	if !ok {
		*warnings = append(*warnings, "odrzucono wiersz z "+date+": nie można ustalić kwoty")
		log.Printf("[PDFParser] Discarding band at %s: unresolvable amount", date)
		return models.RawTransaction{}, false
	}
	txn.Amount = amount

	if balCell, ok := cells[ColBalance]; ok {
		if bal, err := models.ParseAmount(balCell); err == nil {
			txn.BalanceAfter = &bal
		}
	}
	return txn, true
}

// resolveAmount implements the separate debit/credit semantics: when both
// columns exist the non-empty one wins and debit is negated; when both are
// populated and non-zero, credit wins; an amount column is the fallback.
func resolveAmount(cells map[ColumnType]string) (models.Money, bool) {
	debit, debitOK := parseCell(cells[ColDebit])
	credit, creditOK := parseCell(cells[ColCredit])

	debitOK = debitOK && !debit.IsZero()
	creditOK = creditOK && !credit.IsZero()

	switch {
	case creditOK:
		return credit.Abs(), true
	case debitOK:
		return debit.Abs().Neg(), true
	}

	if amount, ok := parseCell(cells[ColAmount]); ok {
		return amount, true
	}
	return models.Money{}, false
}

func parseCell(s string) (models.Money, bool) {
	if strings.TrimSpace(s) == "" {
		return models.Money{}, false
	}
	amount, err := models.ParseAmount(s)
	if err != nil {
		return models.Money{}, false
	}
	return amount, true
}

func bandText(band []Word) string {
	parts := make([]string, len(band))
	for i, w := range band {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
