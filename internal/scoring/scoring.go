package scoring

import (
	"log"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aistate/aml-engine/internal/rules"
	"github.com/aistate/aml-engine/pkg/models"
)

const reasonEvidenceLimit = 10

// Score aggregates per-transaction risk tags into one 0-100 case score.
// A tag's configured weight counts in full once the tagged volume reaches
// 10% of total volume; below that it scales down proportionally, so a
// single tiny crypto purchase does not dominate the case.
func Score(txns []models.NormalizedTransaction, cls *rules.Classifier) (int, []models.RiskReason) {
	type tagAgg struct {
		count  int
		amount models.Money
		txIDs  []string
	}
	agg := make(map[string]*tagAgg)
	var totalAbs models.Money

	for i := range txns {
		abs := txns[i].AbsAmount()
		totalAbs = totalAbs.Add(abs)
		if txns[i].IsWhitelisted {
			continue
		}
		for _, tag := range txns[i].RiskTags {
			a, ok := agg[tag]
			if !ok {
				a = &tagAgg{}
				agg[tag] = a
			}
			a.count++
			a.amount = a.amount.Add(abs)
			if len(a.txIDs) < reasonEvidenceLimit {
				a.txIDs = append(a.txIDs, txns[i].ID)
			}
		}
	}

	tags := make([]string, 0, len(agg))
	for tag := range agg {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	ten := decimal.NewFromInt(10)
	hundred := decimal.NewFromInt(100)
	score := decimal.Zero
	var reasons []models.RiskReason
	for _, tag := range tags {
		weight, ok := cls.WeightFor(tag)
		if !ok {
			continue
		}
		a := agg[tag]
		pct := decimal.Zero
		if totalAbs.IsPositive() {
			pct = a.amount.Mul(hundred).Div(totalAbs)
		}
		effective := decimal.NewFromInt(int64(weight))
		if pct.LessThan(ten) {
			scaled := effective.Mul(pct).Div(ten)
			if scaled.LessThan(effective) {
				effective = scaled
			}
		}
		score = score.Add(effective)
		reasons = append(reasons, models.RiskReason{
			Tag:           tag,
			Count:         a.count,
			Amount:        a.amount,
			PctOfTotal:    pct.InexactFloat64(),
			ScoreDelta:    effective.InexactFloat64(),
			EvidenceTxIDs: a.txIDs,
		})
	}

	sort.SliceStable(reasons, func(a, b int) bool {
		return reasons[a].ScoreDelta > reasons[b].ScoreDelta
	})

	final := int(score.Round(0).IntPart())
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}
	if len(reasons) > 0 {
		log.Printf("[Scoring] %d tagged flows, aggregate score %d", len(reasons), final)
	}
	return final, reasons
}
