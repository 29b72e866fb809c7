package baseline

import (
	"math"
	"sort"
	"strings"

	"github.com/aistate/aml-engine/pkg/models"
)

// Baseline is the per-statement statistical profile the anomaly detectors
// run against. Months are keyed YYYY-MM and iterated in sorted order so
// output is stable run to run.
type Baseline struct {
	Months map[string]*models.MonthlyProfile
}

// Build groups transactions by calendar month and accumulates the
// statistics the detectors need. Order-independent.
func Build(txns []models.NormalizedTransaction) *Baseline {
	b := &Baseline{Months: make(map[string]*models.MonthlyProfile)}
	for i := range txns {
		txn := &txns[i]
		month := models.MonthKey(txn.Date)
		if month == "" {
			continue
		}
		p, ok := b.Months[month]
		if !ok {
			p = &models.MonthlyProfile{
				Month:          month,
				Counterparties: make(map[string]struct{}),
				ChannelCounts:  make(map[models.Channel]int),
				CategoryTotals: make(map[string]models.Money),
			}
			b.Months[month] = p
		}
		p.TxCount++
		abs := txn.AbsAmount()
		p.Amounts = append(p.Amounts, abs)
		if txn.Direction() == models.DirectionCredit {
			p.TotalCredit = p.TotalCredit.Add(txn.Amount)
		} else {
			p.TotalDebit = p.TotalDebit.Add(abs)
		}
		if cp := counterpartyKey(txn.CounterpartyClean); cp != "" {
			p.Counterparties[cp] = struct{}{}
		}
		p.ChannelCounts[txn.Channel]++
		if txn.Category != "" {
			p.CategoryTotals[txn.Category] = p.CategoryTotals[txn.Category].Add(abs)
		}
	}
	return b
}

// SortedMonths returns the month keys in lexicographic (= chronological)
// order.
func (b *Baseline) SortedMonths() []string {
	keys := make([]string, 0, len(b.Months))
	for k := range b.Months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TotalDebit sums debit volume across all months.
func (b *Baseline) TotalDebit() models.Money {
	var total models.Money
	for _, p := range b.Months {
		total = total.Add(p.TotalDebit)
	}
	return total
}

// Counterparties returns the union of all monthly counterparty sets.
func (b *Baseline) Counterparties() map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range b.Months {
		for cp := range p.Counterparties {
			out[cp] = struct{}{}
		}
	}
	return out
}

// counterpartyKey normalizes a name for set membership: lowercased and
// truncated to 50 chars, matching how historical profiles are stored.
func counterpartyKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if len(key) > 50 {
		key = key[:50]
	}
	return key
}

// meanStddev computes the mean and sample standard deviation of absolute
// amounts. Returns zero stddev for fewer than two samples.
func meanStddev(amounts []models.Money) (mean, stddev float64) {
	n := len(amounts)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, a := range amounts {
		sum += a.InexactFloat64()
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, a := range amounts {
		d := a.InexactFloat64() - mean
		ss += d * d
	}
	stddev = math.Sqrt(ss / float64(n-1))
	return mean, stddev
}
