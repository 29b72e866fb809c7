package baseline

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aistate/aml-engine/internal/rules"
	"github.com/aistate/aml-engine/pkg/models"
)

const maxEvidenceIDs = 10

// Detect runs every anomaly detector over a statement's transactions.
// historical holds counterparty keys from previously analyzed statements,
// known holds the counterparty-memory keys. Output order is fixed:
// detectors run in a fixed sequence and each iterates transactions in
// parser order and months in sorted order.
func Detect(txns []models.NormalizedTransaction, b *Baseline, historical, known map[string]struct{}, cls *rules.Classifier) []models.Alert {
	th := cls.Anomaly()
	var alerts []models.Alert
	alerts = append(alerts, detectLargeOutliers(txns, th, cls)...)
	alerts = append(alerts, detectNewCounterpartyLarge(txns, b, historical, known, th, cls)...)
	if a := detectBurst(txns, models.ChannelBlikP2P, 7, th.P2PBurstCount, "P2P_BURST", cls); a != nil {
		alerts = append(alerts, *a)
	}
	if a := detectBurst(txns, models.ChannelCash, 3, th.CashClusterCount, "CASH_CLUSTER", cls); a != nil {
		alerts = append(alerts, *a)
	}
	alerts = append(alerts, detectSpendingOverIncome(txns, b, th, cls)...)
	log.Printf("[Baseline] %d transactions, %d months, %d alerts", len(txns), len(b.Months), len(alerts))
	return alerts
}

func detectLargeOutliers(txns []models.NormalizedTransaction, th rules.AnomalyThresholds, cls *rules.Classifier) []models.Alert {
	var amounts []models.Money
	for i := range txns {
		amounts = append(amounts, txns[i].AbsAmount())
	}
	mean, stddev := meanStddev(amounts)
	if stddev == 0 {
		return nil
	}

	var alerts []models.Alert
	for i := range txns {
		abs := txns[i].AbsAmount().InexactFloat64()
		z := (abs - mean) / stddev
		if z <= th.OutlierZScore {
			continue
		}
		severity := models.SeverityMedium
		if z > 4 {
			severity = models.SeverityHigh
		}
		alerts = append(alerts, models.Alert{
			ID:         newID(),
			AlertType:  "LARGE_OUTLIER",
			Severity:   severity,
			ScoreDelta: cls.ScoreDelta("LARGE_OUTLIER"),
			Explain: fmt.Sprintf("Transakcja %s PLN znacznie odbiega od średniej %.2f PLN (z=%.1f)",
				models.AmountString(txns[i].Amount), mean, z),
			EvidenceTxIDs: []string{txns[i].ID},
		})
	}
	return alerts
}

func detectNewCounterpartyLarge(txns []models.NormalizedTransaction, b *Baseline, historical, known map[string]struct{}, th rules.AnomalyThresholds, cls *rules.Classifier) []models.Alert {
	months := len(b.Months)
	if months == 0 {
		return nil
	}
	avgMonthlyDebit := b.TotalDebit().InexactFloat64() / float64(months)
	limit := th.NewCpLargePct * avgMonthlyDebit
	if limit <= 0 {
		return nil
	}

	var alerts []models.Alert
	for i := range txns {
		cp := counterpartyKey(txns[i].CounterpartyClean)
		if cp == "" {
			continue
		}
		if _, ok := historical[cp]; ok {
			continue
		}
		if _, ok := known[cp]; ok {
			continue
		}
		if txns[i].AbsAmount().InexactFloat64() <= limit {
			continue
		}
		alerts = append(alerts, models.Alert{
			ID:         newID(),
			AlertType:  "NEW_COUNTERPARTY_LARGE",
			Severity:   models.SeverityMedium,
			ScoreDelta: cls.ScoreDelta("NEW_COUNTERPARTY_LARGE"),
			Explain: fmt.Sprintf("Duża transakcja %s PLN z nowym kontrahentem: %s",
				models.AmountString(txns[i].Amount), txns[i].CounterpartyClean),
			EvidenceTxIDs: []string{txns[i].ID},
		})
	}
	return alerts
}

// detectBurst slides a windowDays-wide window over the channel's
// transactions and fires once on the first window holding at least
// minCount of them.
func detectBurst(txns []models.NormalizedTransaction, channel models.Channel, windowDays, minCount int, alertType string, cls *rules.Classifier) *models.Alert {
	if minCount <= 0 {
		return nil
	}
	type dated struct {
		id   string
		date time.Time
	}
	var hits []dated
	for i := range txns {
		if txns[i].Channel != channel {
			continue
		}
		d, err := models.ParseISODate(txns[i].Date)
		if err != nil {
			continue
		}
		hits = append(hits, dated{id: txns[i].ID, date: d})
	}
	if len(hits) < minCount {
		return nil
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].date.Before(hits[b].date) })

	window := time.Duration(windowDays) * 24 * time.Hour
	for start := 0; start <= len(hits)-minCount; start++ {
		end := start
		for end < len(hits) && hits[end].date.Sub(hits[start].date) < window {
			end++
		}
		if end-start < minCount {
			continue
		}
		ids := make([]string, 0, maxEvidenceIDs)
		for _, h := range hits[start:end] {
			if len(ids) == maxEvidenceIDs {
				break
			}
			ids = append(ids, h.id)
		}
		var explain string
		if alertType == "CASH_CLUSTER" {
			explain = fmt.Sprintf("%d operacji gotówkowych w ciągu %d dni (od %s)",
				end-start, windowDays, hits[start].date.Format("2006-01-02"))
		} else {
			explain = fmt.Sprintf("%d przelewów P2P w ciągu %d dni (od %s)",
				end-start, windowDays, hits[start].date.Format("2006-01-02"))
		}
		return &models.Alert{
			ID:            newID(),
			AlertType:     alertType,
			Severity:      models.SeverityMedium,
			ScoreDelta:    cls.ScoreDelta(alertType),
			Explain:       explain,
			EvidenceTxIDs: ids,
		}
	}
	return nil
}

func detectSpendingOverIncome(txns []models.NormalizedTransaction, b *Baseline, th rules.AnomalyThresholds, cls *rules.Classifier) []models.Alert {
	var alerts []models.Alert
	for _, month := range b.SortedMonths() {
		p := b.Months[month]
		credit := p.TotalCredit.InexactFloat64()
		if credit <= 0 {
			continue
		}
		ratio := p.TotalDebit.InexactFloat64() / credit
		if ratio <= th.SpendingOverIncomePct {
			continue
		}
		severity := models.SeverityMedium
		if ratio > 1.5 {
			severity = models.SeverityHigh
		}
		ids := make([]string, 0, maxEvidenceIDs)
		for i := range txns {
			if len(ids) == maxEvidenceIDs {
				break
			}
			if models.MonthKey(txns[i].Date) == month && txns[i].Direction() == models.DirectionDebit {
				ids = append(ids, txns[i].ID)
			}
		}
		alerts = append(alerts, models.Alert{
			ID:         newID(),
			AlertType:  "SPENDING_OVER_INCOME",
			Severity:   severity,
			ScoreDelta: cls.ScoreDelta("SPENDING_OVER_INCOME"),
			Explain: fmt.Sprintf("W miesiącu %s wydatki %s PLN przekroczyły wpływy %s PLN (%.0f%%)",
				month, models.AmountString(p.TotalDebit), models.AmountString(p.TotalCredit), ratio*100),
			EvidenceTxIDs: ids,
		})
	}
	return alerts
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
