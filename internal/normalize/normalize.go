package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/aistate/aml-engine/internal/textutil"
	"github.com/aistate/aml-engine/pkg/models"
)

// Normalizer turns parser output into the canonical transaction form the
// rest of the pipeline operates on: quantized amounts, cleaned text fields,
// a stable dedup hash, the detected payment channel and any URLs found in
// the transaction text.

const rawTextLimit = 500

// TxHash computes the 16-hex dedup hash of a transaction:
// SHA-256 over date|amount|counterparty[:50]|title[:100].
func TxHash(date string, amount models.Money, counterpartyClean, titleClean string) string {
	payload := date + "|" + models.AmountString(amount) + "|" +
		textutil.Truncate(counterpartyClean, 50) + "|" +
		textutil.Truncate(titleClean, 100)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:16]
}

// NewID returns a 32-hex random identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Normalize converts raw transactions into normalized ones, dropping exact
// duplicates (same txHash keeps its first occurrence). Order is preserved.
func Normalize(statementID string, raws []models.RawTransaction) []models.NormalizedTransaction {
	out := make([]models.NormalizedTransaction, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	dropped := 0

	for _, raw := range raws {
		txn := normalizeOne(statementID, raw)
		if _, dup := seen[txn.TxHash]; dup {
			dropped++
			continue
		}
		seen[txn.TxHash] = struct{}{}
		out = append(out, txn)
	}

	if dropped > 0 {
		log.Printf("[Normalizer] Dropped %d duplicate transactions for statement %s", dropped, statementID)
	}
	return out
}

func normalizeOne(statementID string, raw models.RawTransaction) models.NormalizedTransaction {
	raw.Amount = models.Quantize(raw.Amount)
	if raw.BalanceAfter != nil {
		q := models.Quantize(*raw.BalanceAfter)
		raw.BalanceAfter = &q
	}
	if raw.Currency == "" {
		raw.Currency = "PLN"
	}

	cpClean := textutil.CleanCounterparty(raw.CounterpartyRaw)
	titleClean := textutil.CollapseWhitespace(raw.Title)
	urls := textutil.ExtractURLs(raw.CounterpartyRaw + " " + raw.Title + " " + raw.RawText)
	raw.RawText = textutil.Truncate(raw.RawText, rawTextLimit)

	return models.NormalizedTransaction{
		ID:                NewID(),
		StatementID:       statementID,
		RawTransaction:    raw,
		CounterpartyClean: cpClean,
		TitleClean:        titleClean,
		Channel:           DetectChannel(raw.BankCategory, raw.Title, raw.CounterpartyRaw),
		URLs:              urls,
		TxHash:            TxHash(raw.Date, raw.Amount, cpClean, titleClean),
	}
}
