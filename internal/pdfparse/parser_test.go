package pdfparse

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

// Synthetic word layouts stand in for real PDFs: the spatial logic only
// sees words with coordinates, so tests build pages the same way the
// extractor would.

func word(text string, x, y float64, page int) Word {
	return Word{Text: text, X: x, W: float64(len(text)) * 5, Y: y, Page: page}
}

// statementWords builds one page: metadata block, header row and three
// transaction rows, the middle one with a wrapped description line.
func statementWords() []Word {
	var ws []Word
	// Header region (high Y = top of page).
	ws = append(ws,
		word("mBank", 50, 800, 1),
		word("Właściciel:", 50, 780, 1), word("Jan", 110, 780, 1), word("Kowalski", 135, 780, 1),
		word("okres:", 50, 760, 1), word("01.01.2024", 90, 760, 1), word("-", 150, 760, 1), word("31.01.2024", 160, 760, 1),
		word("26", 50, 740, 1), word("1140", 70, 740, 1), word("2004", 100, 740, 1),
		word("0000", 130, 740, 1), word("3002", 160, 740, 1), word("0135", 190, 740, 1), word("5387", 220, 740, 1),
		word("saldo", 50, 720, 1), word("początkowe:", 80, 720, 1), word("1000,00", 160, 720, 1),
		word("saldo", 50, 700, 1), word("końcowe:", 80, 700, 1), word("4050,00", 160, 700, 1),
	)
	// Table header band.
	ws = append(ws,
		word("Data", 50, 650, 1),
		word("Opis", 150, 650, 1),
		word("Nadawca/Odbiorca", 280, 650, 1),
		word("Kwota", 420, 650, 1),
		word("Saldo", 500, 650, 1),
	)
	// Transactions.
	ws = append(ws,
		word("05.01.2024", 50, 620, 1),
		word("zakup", 150, 620, 1), word("kartą", 185, 620, 1),
		word("ŻABKA", 280, 620, 1),
		word("-150,00", 420, 620, 1),
		word("850,00", 500, 620, 1),

		word("10.01.2024", 50, 590, 1),
		word("wynagrodzenie", 150, 590, 1),
		word("ACME", 280, 590, 1), word("SP", 320, 590, 1),
		word("za", 150, 575, 1), word("styczeń", 165, 575, 1), // wrapped description
		word("5000,00", 420, 590, 1),
		word("5850,00", 500, 590, 1),

		word("15.01.2024", 50, 560, 1),
		word("czynsz", 150, 560, 1),
		word("WSPÓLNOTA", 280, 560, 1),
		word("-1800,00", 420, 560, 1),
		word("4050,00", 500, 560, 1),
	)
	return ws
}

func parseSynthetic(t *testing.T, words []Word) *Result {
	t.Helper()
	p := NewParser(nil)
	res, err := p.parseWords(words, 1, 5000)
	if err != nil {
		t.Fatalf("parseWords failed: %v", err)
	}
	return res
}

func TestDetectHeaderAndColumns(t *testing.T) {
	res := parseSynthetic(t, statementWords())

	types := make([]ColumnType, len(res.Columns))
	for i, c := range res.Columns {
		types[i] = c.Type
	}
	expected := []ColumnType{ColDate, ColDescription, ColCounterparty, ColAmount, ColBalance}
	if len(types) != len(expected) {
		t.Fatalf("Columns = %v, want %v", types, expected)
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Errorf("Column %d = %v, want %v", i, types[i], expected[i])
		}
	}
}

func TestBandGroupingJoinsWrappedLines(t *testing.T) {
	res := parseSynthetic(t, statementWords())

	if len(res.Transactions) != 3 {
		t.Fatalf("Expected 3 transactions, got %d: %+v", len(res.Transactions), res.Transactions)
	}

	second := res.Transactions[1]
	if second.Date != "2024-01-10" {
		t.Errorf("Date = %q", second.Date)
	}
	if !strings.Contains(second.Title, "wynagrodzenie") || !strings.Contains(second.Title, "styczeń") {
		t.Errorf("Wrapped description not joined: %q", second.Title)
	}
	if !second.Amount.Equal(decimal.RequireFromString("5000.00")) {
		t.Errorf("Amount = %s", second.Amount)
	}
	if second.BalanceAfter == nil || !second.BalanceAfter.Equal(decimal.RequireFromString("5850.00")) {
		t.Errorf("BalanceAfter = %v", second.BalanceAfter)
	}
}

func TestExtractInfoFromHeaderRegion(t *testing.T) {
	res := parseSynthetic(t, statementWords())
	info := res.Info

	if info.BankID != "mbank" {
		t.Errorf("BankID = %q", info.BankID)
	}
	if info.PeriodStart != "2024-01-01" || info.PeriodEnd != "2024-01-31" {
		t.Errorf("Period = %s..%s", info.PeriodStart, info.PeriodEnd)
	}
	if info.AccountHolder != "Jan Kowalski" {
		t.Errorf("AccountHolder = %q", info.AccountHolder)
	}
	if info.OpeningBalance == nil || !info.OpeningBalance.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("OpeningBalance = %v", info.OpeningBalance)
	}
	if info.ClosingBalance == nil || !info.ClosingBalance.Equal(decimal.RequireFromString("4050.00")) {
		t.Errorf("ClosingBalance = %v", info.ClosingBalance)
	}
	if info.AccountIBAN == "" || !strings.HasSuffix(info.AccountIBAN, "5387") {
		t.Errorf("AccountIBAN = %q", info.AccountIBAN)
	}
	if strings.Contains(info.AccountIBAN, "20040") {
		t.Errorf("IBAN not masked: %q", info.AccountIBAN)
	}
}

func TestNoHeaderDetected(t *testing.T) {
	words := []Word{
		word("Lorem", 50, 700, 1),
		word("ipsum", 100, 700, 1),
	}
	p := NewParser(nil)
	_, err := p.parseWords(words, 1, 500)
	if err == nil {
		t.Fatalf("Expected ErrNoHeader")
	}
	var nh *ErrNoHeader
	if !asErrNoHeader(err, &nh) {
		t.Fatalf("Expected *ErrNoHeader, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "y=") {
		t.Errorf("Error should include the scanned Y range: %v", err)
	}
}

func asErrNoHeader(err error, target **ErrNoHeader) bool {
	if e, ok := err.(*ErrNoHeader); ok {
		*target = e
		return true
	}
	return false
}

func TestSeparateDebitCreditColumns(t *testing.T) {
	var ws []Word
	ws = append(ws,
		word("Data", 50, 650, 1),
		word("Opis", 150, 650, 1),
		word("Obciążenia", 300, 650, 1),
		word("Uznania", 420, 650, 1),
	)
	ws = append(ws,
		word("05.01.2024", 50, 620, 1), word("zakup", 150, 620, 1), word("150,00", 300, 620, 1),
		word("10.01.2024", 50, 590, 1), word("wpływ", 150, 590, 1), word("2000,00", 420, 590, 1),
	)

	p := NewParser(nil)
	res, err := p.parseWords(ws, 1, 500)
	if err != nil {
		t.Fatalf("parseWords failed: %v", err)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(res.Transactions))
	}
	if res.Transactions[0].Amount.Sign() >= 0 {
		t.Errorf("Debit column amount must be negated, got %s", res.Transactions[0].Amount)
	}
	if res.Transactions[1].Amount.Sign() <= 0 {
		t.Errorf("Credit column amount must be positive, got %s", res.Transactions[1].Amount)
	}
}

func TestReparseWithColumnMapping(t *testing.T) {
	// Header labels the parser cannot type-detect: amounts end up skipped.
	var ws []Word
	ws = append(ws,
		word("Data", 50, 650, 1),
		word("Kolumna1", 150, 650, 1),
		word("Kwota", 420, 650, 1),
	)
	ws = append(ws,
		word("05.01.2024", 50, 620, 1), word("sklep", 150, 620, 1), word("-75,00", 420, 620, 1),
	)

	p := NewParser(nil)
	res, err := p.parseWords(ws, 1, 500)
	if err != nil {
		t.Fatalf("parseWords failed: %v", err)
	}
	if res.Columns[1].Type != ColSkip {
		t.Fatalf("Expected undetected column to be skip, got %v", res.Columns[1].Type)
	}

	// Re-map column 1 to description and re-extract.
	res.Columns[1].Type = ColDescription
	res.extractBody()
	if len(res.Transactions) != 1 || res.Transactions[0].Title != "sklep" {
		t.Errorf("Remapped column not applied: %+v", res.Transactions)
	}
}

func TestDiscardBandWithoutAmount(t *testing.T) {
	var ws []Word
	ws = append(ws,
		word("Data", 50, 650, 1),
		word("Opis", 150, 650, 1),
		word("Kwota", 420, 650, 1),
	)
	ws = append(ws,
		word("05.01.2024", 50, 620, 1), word("ok", 150, 620, 1), word("-75,00", 420, 620, 1),
		word("06.01.2024", 50, 590, 1), word("bez", 150, 590, 1), word("kwoty", 180, 590, 1),
	)

	p := NewParser(nil)
	res, err := p.parseWords(ws, 1, 500)
	if err != nil {
		t.Fatalf("parseWords failed: %v", err)
	}
	if len(res.Transactions) != 1 {
		t.Errorf("Expected amountless band to be discarded, got %d txns", len(res.Transactions))
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Expected a warning for the discarded band, got %v", res.Warnings)
	}
}
