package pdfparse

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aistate/aml-engine/internal/textutil"
)

// Header-row detection and column derivation.

// ColumnType classifies what a statement table column holds.
type ColumnType string

const (
	ColDate         ColumnType = "date"
	ColValueDate    ColumnType = "value_date"
	ColDescription  ColumnType = "description"
	ColCounterparty ColumnType = "counterparty"
	ColAmount       ColumnType = "amount"
	ColDebit        ColumnType = "debit"
	ColCredit       ColumnType = "credit"
	ColBalance      ColumnType = "balance"
	ColBankType     ColumnType = "bank_type"
	ColReference    ColumnType = "reference"
	ColSkip         ColumnType = "skip"
)

// Column is one derived table column: an X range plus its detected meaning.
// A tagged record, never a free-form map.
type Column struct {
	XMin  float64    `json:"x_min"`
	XMax  float64    `json:"x_max"`
	Label string     `json:"label"`
	Type  ColumnType `json:"col_type"`
}

// cellEpsilon widens each column when assigning body words to cells.
const cellEpsilon = 2.0

// headerKeywords maps ASCII-folded lowercase Polish header fragments to
// column types. Order matters: more specific fragments come first.
var headerKeywords = []struct {
	fragment string
	colType  ColumnType
	exact    bool // short labels match whole-cell only
}{
	{fragment: "data waluty", colType: ColValueDate},
	{fragment: "data ksiegowania", colType: ColDate},
	{fragment: "data operacji", colType: ColDate},
	{fragment: "data transakcji", colType: ColDate},
	{fragment: "data", colType: ColDate},
	{fragment: "nadawca/odbiorca", colType: ColCounterparty},
	{fragment: "nadawca", colType: ColCounterparty},
	{fragment: "odbiorca", colType: ColCounterparty},
	{fragment: "kontrahent", colType: ColCounterparty},
	{fragment: "obciazenia", colType: ColDebit},
	{fragment: "obciazenie", colType: ColDebit},
	{fragment: "winien", colType: ColDebit},
	{fragment: "uznania", colType: ColCredit},
	{fragment: "uznanie", colType: ColCredit},
	{fragment: "ma", colType: ColCredit, exact: true},
	{fragment: "kwota", colType: ColAmount},
	{fragment: "saldo", colType: ColBalance},
	{fragment: "opis operacji", colType: ColDescription},
	{fragment: "opis", colType: ColDescription},
	{fragment: "tytul", colType: ColDescription},
	{fragment: "szczegoly", colType: ColDescription},
	{fragment: "rodzaj operacji", colType: ColBankType},
	{fragment: "rodzaj", colType: ColBankType},
	{fragment: "typ", colType: ColBankType, exact: true},
	{fragment: "nr ref", colType: ColReference},
	{fragment: "referencje", colType: ColReference},
	{fragment: "lp", colType: ColSkip, exact: true},
}

// classifyHeaderCell resolves the column type of one header cell text.
func classifyHeaderCell(text string) ColumnType {
	folded := strings.ToLower(textutil.FoldASCII(textutil.CollapseWhitespace(text)))
	for _, kw := range headerKeywords {
		if kw.exact {
			if folded == kw.fragment {
				return kw.colType
			}
			continue
		}
		if strings.Contains(folded, kw.fragment) {
			return kw.colType
		}
	}
	return ColSkip
}

// ErrNoHeader reports a failed header scan together with the Y range that
// was searched, which makes "why did this bank not parse" debuggable.
type ErrNoHeader struct {
	Page int
	YMin float64
	YMax float64
}

func (e *ErrNoHeader) Error() string {
	return fmt.Sprintf("no header row detected on page %d (scanned y=%.1f..%.1f)", e.Page, e.YMin, e.YMax)
}

// DetectHeader finds the table header row on the first page that has one:
// a single Y-band whose words contain a date keyword plus at least one
// amount-ish keyword. Returns the header words and the band's Y.
func DetectHeader(words []Word) ([]Word, float64, int, error) {
	yMin, yMax := math.Inf(1), math.Inf(-1)
	maxPage := 0
	for _, w := range words {
		if w.Page > maxPage {
			maxPage = w.Page
		}
	}

	for page := 1; page <= maxPage; page++ {
		bands := yBands(words, page)
		for _, band := range bands {
			if band.y < yMin {
				yMin = band.y
			}
			if band.y > yMax {
				yMax = band.y
			}
			if isHeaderBand(band.words) {
				return band.words, band.y, page, nil
			}
		}
	}

	if math.IsInf(yMin, 1) {
		yMin, yMax = 0, 0
	}
	return nil, 0, 0, &ErrNoHeader{Page: maxPage, YMin: yMin, YMax: yMax}
}

type band struct {
	y     float64
	words []Word
}

// yBands groups one page's words into Y-bands (tolerance 2pt), top first.
func yBands(words []Word, page int) []band {
	grouped := make(map[int][]Word)
	for _, w := range words {
		if w.Page != page {
			continue
		}
		grouped[int(math.Round(w.Y/2))] = append(grouped[int(math.Round(w.Y/2))], w)
	}
	keys := make([]int, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	bands := make([]band, 0, len(keys))
	for _, k := range keys {
		ws := grouped[k]
		sort.Slice(ws, func(a, b int) bool { return ws[a].X < ws[b].X })
		bands = append(bands, band{y: ws[0].Y, words: ws})
	}
	return bands
}

// isHeaderBand requires a date column keyword and at least one of
// amount/debit/credit/balance in the same band.
func isHeaderBand(words []Word) bool {
	hasDate, hasAmount := false, false
	for _, w := range words {
		switch classifyHeaderCell(w.Text) {
		case ColDate, ColValueDate:
			hasDate = true
		case ColAmount, ColDebit, ColCredit, ColBalance:
			hasAmount = true
		}
	}
	return hasDate && hasAmount
}

// DeriveColumns turns header words into column definitions. Boundaries sit
// halfway between adjacent header word centers; the first and last columns
// extend to the page margins.
func DeriveColumns(headerWords []Word) []Column {
	ws := make([]Word, len(headerWords))
	copy(ws, headerWords)
	sort.Slice(ws, func(a, b int) bool { return ws[a].X < ws[b].X })

	// Merge header words that sit closer than a typical column gap; multi
	// word labels like "Data operacji" arrive as separate words.
	merged := make([]Word, 0, len(ws))
	for _, w := range ws {
		if len(merged) > 0 && w.X-(merged[len(merged)-1].X+merged[len(merged)-1].W) < 12 {
			last := &merged[len(merged)-1]
			last.Text += " " + w.Text
			last.W = w.X + w.W - last.X
			continue
		}
		merged = append(merged, w)
	}

	cols := make([]Column, len(merged))
	for i, w := range merged {
		cols[i] = Column{Label: textutil.CollapseWhitespace(w.Text), Type: classifyHeaderCell(w.Text)}
		if i == 0 {
			cols[i].XMin = 0
		} else {
			cols[i].XMin = (merged[i-1].Center() + w.Center()) / 2
		}
		if i == len(merged)-1 {
			cols[i].XMax = math.Inf(1)
		} else {
			cols[i].XMax = (w.Center() + merged[i+1].Center()) / 2
		}
	}
	return cols
}

// HeaderKey builds the template lookup key from header cells: folded,
// lowercased, pipe-joined. Statements from the same bank product hash to
// the same key even when spacing differs.
func HeaderKey(cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = strings.ToLower(textutil.FoldASCII(textutil.CollapseWhitespace(c.Label)))
	}
	return strings.Join(parts, "|")
}
