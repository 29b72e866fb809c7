package memory

import (
	"strings"

	"github.com/aistate/aml-engine/internal/textutil"
)

// TokenOverlap scores two normalized names by Jaccard similarity over
// their token sets. Diacritics are folded here and only here, so "żabka"
// and "zabka" compare equal while canonical names keep their spelling.
func TokenOverlap(a, b string) float64 {
	ta := tokens(a)
	tb := tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(textutil.FoldASCII(s)) {
		// Single characters carry no identity, bank numbering noise
		// mostly.
		if len(f) > 1 {
			out[f] = struct{}{}
		}
	}
	return out
}
