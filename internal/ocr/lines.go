package ocr

import (
	"regexp"
	"strings"

	"github.com/aistate/aml-engine/internal/textutil"
	"github.com/aistate/aml-engine/pkg/models"
)

// Line-based extraction over OCR output. Without glyph coordinates the
// spatial parser cannot run, so rows are recognized by shape: a leading
// date and a trailing amount.

var (
	lineDateRe   = regexp.MustCompile(`^\s*(\d{2}[./-]\d{2}[./-]\d{2,4})\b`)
	lineAmountRe = regexp.MustCompile(`(-?\d[\d .]*[,.]\d{2})\s*(?:PLN|zł)?\s*$`)
)

// ParseText extracts transactions from flat OCR text, one candidate row
// per line. Lines without both a date and an amount are skipped.
func ParseText(text string) []models.RawTransaction {
	var out []models.RawTransaction
	for _, line := range strings.Split(text, "\n") {
		dm := lineDateRe.FindStringSubmatch(line)
		if dm == nil {
			continue
		}
		am := lineAmountRe.FindStringSubmatch(line)
		if am == nil {
			continue
		}
		date, err := models.NormalizeDate(dm[1])
		if err != nil {
			continue
		}
		amount, err := models.ParseAmount(am[1])
		if err != nil {
			continue
		}
		desc := line[len(dm[0]):]
		desc = strings.TrimSuffix(desc, am[0])
		desc = textutil.CollapseWhitespace(desc)

		out = append(out, models.RawTransaction{
			Date:            date,
			Amount:          models.Quantize(amount),
			Currency:        "PLN",
			CounterpartyRaw: desc,
			Title:           desc,
			RawText:         textutil.CollapseWhitespace(line),
		})
	}
	return out
}
