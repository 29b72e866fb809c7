package rules

import (
	"strings"

	"github.com/aistate/aml-engine/internal/textutil"
	"github.com/aistate/aml-engine/pkg/models"
)

// Classifier applies a compiled rule configuration to normalized
// transactions. Classification is pure: the same transaction, config and
// label snapshot always produce the same tags, explains and score.
type Classifier struct {
	cfg *Compiled
}

func NewClassifier(cfg *Compiled) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify fills Category, Subcategory, RiskTags, RuleExplains, whitelist /
// blacklist flags and the clamped per-transaction RiskScore. The label is
// the counterparty-memory standing for this transaction's counterparty.
func (c *Classifier) Classify(txn *models.NormalizedTransaction, label models.CounterpartyLabel) {
	search := strings.ToLower(txn.CounterpartyClean + " " + txn.TitleClean + " " + txn.RawText)
	searchASCII := textutil.FoldASCII(search)

	// Category / subcategory patterns. The first matching subcategory fixes
	// the category; later matches still contribute tags and explains.
	for _, cat := range c.cfg.Categories {
		for _, sub := range cat.Subcategories {
			for _, re := range sub.Patterns {
				if !re.MatchString(search) && !re.MatchString(searchASCII) {
					continue
				}
				if txn.Category == "" {
					txn.Category = cat.Name
					txn.Subcategory = cat.Name + ":" + sub.Name
				}
				addTag(txn, cat.Name)
				txn.RuleExplains = append(txn.RuleExplains, models.RuleExplain{
					Rule:    "category:" + cat.Name + ":" + sub.Name,
					Pattern: re.String(),
					Matched: cat.Name,
				})
				break // first hit per subcategory
			}
		}
	}

	// Risk dictionary.
	for _, risk := range c.cfg.RiskRules {
		for _, re := range risk.Patterns {
			if re.MatchString(search) || re.MatchString(searchASCII) {
				addTag(txn, "RISK:"+risk.Name)
				txn.RuleExplains = append(txn.RuleExplains, models.RuleExplain{
					Rule:    "risk:" + risk.Name,
					Pattern: re.String(),
					Matched: risk.Name,
				})
				break
			}
		}
	}

	// URL domain attributions.
	for _, url := range txn.URLs {
		domain := textutil.URLDomain(url)
		cs, ok := c.cfg.URLDomains[domain]
		if !ok {
			continue
		}
		if txn.Category == "" {
			txn.Category = cs.Category
			txn.Subcategory = cs.Category + ":" + cs.Subcategory
		}
		addTag(txn, cs.Category)
		txn.RuleExplains = append(txn.RuleExplains, models.RuleExplain{
			Rule:    "url:" + domain,
			Pattern: domain,
			Matched: cs.Category,
		})
	}

	// Counterparty-memory standing.
	score := 0
	switch label {
	case models.LabelWhitelist:
		txn.IsWhitelisted = true
		score += c.cfg.Scoring["WHITELIST_MATCH"]
		txn.RuleExplains = append(txn.RuleExplains, models.RuleExplain{
			Rule: "memory:whitelist", Matched: "whitelist",
		})
	case models.LabelBlacklist:
		txn.IsBlacklisted = true
		score += c.cfg.Scoring["BLACKLIST_MATCH"]
		addTag(txn, "BLACKLISTED")
		txn.RuleExplains = append(txn.RuleExplains, models.RuleExplain{
			Rule: "memory:blacklist", Matched: "blacklist",
		})
	}

	// A whitelisted counterparty neutralizes the tag weights; the tags and
	// explains stay on the transaction for transparency.
	if !txn.IsWhitelisted {
		for _, tag := range txn.RiskTags {
			if tag == "BLACKLISTED" {
				continue // already charged through BLACKLIST_MATCH
			}
			if w, ok := c.WeightFor(tag); ok {
				score += w
			}
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	txn.RiskScore = score
}

// WeightFor resolves a risk tag to its scoring weight: exact uppercase
// match first, then with colons rewritten to underscores, then with the
// RISK_ prefix stripped.
func (c *Classifier) WeightFor(tag string) (int, bool) {
	upper := strings.ToUpper(tag)
	if w, ok := c.cfg.Scoring[upper]; ok {
		return w, true
	}
	underscored := strings.ReplaceAll(upper, ":", "_")
	if w, ok := c.cfg.Scoring[underscored]; ok {
		return w, true
	}
	stripped := strings.TrimPrefix(underscored, "RISK_")
	if w, ok := c.cfg.Scoring[stripped]; ok {
		return w, true
	}
	return 0, false
}

// ScoreDelta returns the configured weight for an alert type, or zero.
func (c *Classifier) ScoreDelta(alertType string) int {
	return c.cfg.Scoring[strings.ToUpper(alertType)]
}

// Anomaly exposes the anomaly thresholds of the active config.
func (c *Classifier) Anomaly() AnomalyThresholds {
	return c.cfg.Anomaly
}

func addTag(txn *models.NormalizedTransaction, tag string) {
	if !txn.HasRiskTag(tag) {
		txn.RiskTags = append(txn.RiskTags, tag)
	}
}
