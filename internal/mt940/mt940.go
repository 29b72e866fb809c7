package mt940

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/aistate/aml-engine/pkg/models"
)

// SWIFT MT940/STA parser. Emits the same (StatementInfo, RawTransaction)
// shape as the PDF parser so the rest of the pipeline does not care which
// document format a statement arrived in.

// Statement is a parsed MT940 document.
type Statement struct {
	Info         models.StatementInfo
	Transactions []models.RawTransaction
}

var (
	tagLineRe = regexp.MustCompile(`^:(\d{2}[A-Z]?):(.*)$`)
	balanceRe = regexp.MustCompile(`^([CD])(\d{6})([A-Z]{3})([\d,]+)`)
	// value date, optional entry date, direction, optional funds code, amount
	entryRe = regexp.MustCompile(`^(\d{6})(\d{4})?(R?[DC])[A-Z]?([\d,]+)`)
)

// Parse decodes and parses MT940 bytes.
func Parse(data []byte) (*Statement, error) {
	text, err := decode(data)
	if err != nil {
		return nil, err
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	fields := extractFields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no MT940 tags found")
	}

	st := &Statement{Info: models.StatementInfo{Currency: "PLN"}}

	var pendingTxn *models.RawTransaction
	flush := func() {
		if pendingTxn != nil {
			st.Transactions = append(st.Transactions, *pendingTxn)
			pendingTxn = nil
		}
	}

	for _, f := range fields {
		switch f.tag {
		case "25":
			st.Info.AccountIBAN = strings.TrimPrefix(strings.TrimSpace(f.content), "/")
		case "28C", "28":
			// Statement number; recorded on the bank-id slot suffix is not
			// needed, the period derives from the balances below.
		case "60F", "60M":
			if bal, ccy, date, ok := parseBalance(f.content); ok {
				st.Info.OpeningBalance = &bal
				st.Info.Currency = ccy
				if st.Info.PeriodStart == "" {
					st.Info.PeriodStart = date
				}
			}
		case "62F", "62M":
			if bal, ccy, date, ok := parseBalance(f.content); ok {
				st.Info.ClosingBalance = &bal
				st.Info.Currency = ccy
				st.Info.PeriodEnd = date
			}
		case "64":
			if bal, _, _, ok := parseBalance(f.content); ok {
				st.Info.AvailableBalance = &bal
			}
		case "61":
			flush()
			txn, err := parseEntry(f.content, st.Info.PeriodEnd)
			if err != nil {
				log.Printf("[MT940] Skipping unparseable :61: field %q: %v", f.content, err)
				continue
			}
			txn.Currency = st.Info.Currency
			pendingTxn = &txn
		case "86":
			if pendingTxn != nil {
				applyDetails(pendingTxn, f.content)
			}
		}
	}
	flush()

	return st, nil
}

type field struct {
	tag     string
	content string
}

// extractFields groups the document into tag fields. A field starts at a
// line of the form :NN: or :NNA: and spans every following line up to the
// next tag line.
func extractFields(text string) []field {
	var fields []field
	var current *field

	for _, line := range strings.Split(text, "\n") {
		if m := tagLineRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				fields = append(fields, *current)
			}
			current = &field{tag: m[1], content: m[2]}
			continue
		}
		if current != nil && strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "-") {
			current.content += "\n" + line
		}
	}
	if current != nil {
		fields = append(fields, *current)
	}
	return fields
}

// decode tries UTF-8 first, then the legacy Polish codepages. The candidate
// wins if it decodes and its head contains an MT940 marker tag.
func decode(data []byte) (string, error) {
	if utf8.Valid(data) && hasMarker(string(data)) {
		return string(data), nil
	}
	codecs := []*charmap.Charmap{charmap.Windows1250, charmap.ISO8859_2, charmap.ISO8859_1}
	for _, cm := range codecs {
		decoded, err := decodeWith(cm.NewDecoder(), data)
		if err != nil {
			continue
		}
		if hasMarker(decoded) {
			return decoded, nil
		}
	}
	return "", fmt.Errorf("no encoding produced a recognizable MT940 document")
}

func decodeWith(dec *encoding.Decoder, data []byte) (string, error) {
	out, err := dec.Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func hasMarker(text string) bool {
	head := text
	if len(head) > 200 {
		head = head[:200]
	}
	return strings.Contains(head, ":20:") || strings.Contains(head, ":25:")
}

// parseBalance parses C|D + YYMMDD + CCY + amount,dec. Debit balances are
// negative. Returns the balance, currency and the ISO balance date.
func parseBalance(content string) (models.Money, string, string, bool) {
	m := balanceRe.FindStringSubmatch(strings.TrimSpace(content))
	if m == nil {
		return decimal.Zero, "", "", false
	}
	amount, err := parseSwiftAmount(m[4])
	if err != nil {
		return decimal.Zero, "", "", false
	}
	if m[1] == "D" {
		amount = amount.Neg()
	}
	return amount, m[3], swiftDate(m[2]), true
}

// parseEntry parses a :61: field: value date YYMMDD, optional entry date
// MMDD, direction mark, amount. The entry date's year comes from the value
// date (fallback: statement period end year) — never a constant.
func parseEntry(content string, periodEnd string) (models.RawTransaction, error) {
	line := strings.TrimSpace(content)
	m := entryRe.FindStringSubmatch(line)
	if m == nil {
		return models.RawTransaction{}, fmt.Errorf("malformed entry")
	}

	valueDate := swiftDate(m[1])
	amount, err := parseSwiftAmount(m[4])
	if err != nil {
		return models.RawTransaction{}, err
	}

	// D or RC (reversed credit) = debit; C or RD (reversed debit) = credit.
	switch m[3] {
	case "D", "RC":
		amount = amount.Neg()
	}

	date := valueDate
	if m[2] != "" {
		year := ""
		if len(valueDate) == 10 {
			year = valueDate[:4]
		} else if len(periodEnd) >= 4 {
			year = periodEnd[:4]
		}
		if year != "" {
			// Entry date is MMDD; a composed date that is not a real
			// calendar date is dropped in favor of the value date.
			candidate := year + "-" + m[2][:2] + "-" + m[2][2:]
			if _, err := time.Parse("2006-01-02", candidate); err == nil {
				date = candidate
			}
		}
	}

	raw := line
	if i := strings.Index(line, "\n"); i >= 0 {
		raw = line[:i]
	}
	return models.RawTransaction{
		Date:      date,
		ValueDate: valueDate,
		Amount:    amount,
		RawText:   raw,
	}, nil
}

// applyDetails parses a :86: field into counterparty, title, IBAN and bank
// code using the ~XX subfield markers.
func applyDetails(txn *models.RawTransaction, content string) {
	content = strings.ReplaceAll(content, "\n", "")
	if !strings.Contains(content, "~") {
		txn.Title = strings.TrimSpace(content)
		if txn.RawText != "" {
			txn.RawText += " | " + txn.Title
		}
		return
	}

	var counterpartyParts, titleParts []string
	for _, chunk := range strings.Split(content, "~") {
		if len(chunk) < 2 {
			continue
		}
		code, value := chunk[:2], strings.TrimSpace(chunk[2:])
		if value == "" {
			continue
		}
		switch code {
		case "32", "33":
			counterpartyParts = append(counterpartyParts, value)
		case "20", "21", "22", "23", "24", "25":
			titleParts = append(titleParts, value)
		case "38":
			// Counterparty IBAN; keep it in the raw text for the audit trail.
			txn.RawText += " IBAN:" + value
		case "30":
			txn.BankCategory = value
		}
	}
	txn.CounterpartyRaw = strings.Join(counterpartyParts, " ")
	txn.Title = strings.Join(titleParts, " ")
	if txn.Title != "" {
		txn.RawText += " | " + txn.Title
	}
}

// parseSwiftAmount parses "1234,56" into Money.
func parseSwiftAmount(s string) (models.Money, error) {
	s = strings.TrimSuffix(strings.Replace(s, ",", ".", 1), ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad amount %q: %v", s, err)
	}
	return models.Quantize(d), nil
}

// swiftDate converts YYMMDD into ISO YYYY-MM-DD, assuming 20xx.
func swiftDate(s string) string {
	if len(s) != 6 {
		return ""
	}
	return "20" + s[:2] + "-" + s[2:4] + "-" + s[4:6]
}
