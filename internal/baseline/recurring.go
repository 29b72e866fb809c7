package baseline

import (
	"sort"
	"time"

	"github.com/aistate/aml-engine/pkg/models"
)

const (
	recurringMinOccurrences = 3
	recurringMinGapDays     = 28
	recurringMaxGapDays     = 33
	recurringAmountSlack    = 0.1 // relative
)

// MarkRecurring flags subscription-like payments: at least three
// transactions to the same counterparty, roughly monthly apart (28-33
// days) with amounts within 10% of the group's first. Mutates the slice
// in place, setting IsRecurring and RecurringGroup.
func MarkRecurring(txns []models.NormalizedTransaction) int {
	type member struct {
		idx  int
		date time.Time
		abs  float64
	}
	groups := make(map[string][]member)
	for i := range txns {
		cp := counterpartyKey(txns[i].CounterpartyClean)
		if cp == "" {
			continue
		}
		d, err := models.ParseISODate(txns[i].Date)
		if err != nil {
			continue
		}
		groups[cp] = append(groups[cp], member{idx: i, date: d, abs: txns[i].AbsAmount().InexactFloat64()})
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	marked := 0
	for _, cp := range keys {
		members := groups[cp]
		if len(members) < recurringMinOccurrences {
			continue
		}
		sort.SliceStable(members, func(a, b int) bool { return members[a].date.Before(members[b].date) })

		// Grow a run from each unclaimed start: next member must be a
		// monthly step away and amount-compatible with the run's anchor.
		claimed := make([]bool, len(members))
		for s := 0; s < len(members); s++ {
			if claimed[s] {
				continue
			}
			run := []int{s}
			last := s
			for n := s + 1; n < len(members); n++ {
				if claimed[n] {
					continue
				}
				gap := int(members[n].date.Sub(members[last].date).Hours() / 24)
				if gap < recurringMinGapDays {
					continue
				}
				if gap > recurringMaxGapDays {
					break
				}
				if !amountsClose(members[s].abs, members[n].abs) {
					continue
				}
				run = append(run, n)
				last = n
			}
			if len(run) < recurringMinOccurrences {
				continue
			}
			for _, r := range run {
				claimed[r] = true
				txn := &txns[members[r].idx]
				txn.IsRecurring = true
				txn.RecurringGroup = cp
				marked++
			}
		}
	}
	return marked
}

func amountsClose(a, b float64) bool {
	if a == 0 && b == 0 {
		return true
	}
	ref := a
	if b > ref {
		ref = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff/ref <= recurringAmountSlack
}
