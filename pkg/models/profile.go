package models

import "time"

// CounterpartyLabel is the analyst-assigned standing of a counterparty.
type CounterpartyLabel string

const (
	LabelNeutral   CounterpartyLabel = "neutral"
	LabelWhitelist CounterpartyLabel = "whitelist"
	LabelBlacklist CounterpartyLabel = "blacklist"
)

// CounterpartyProfile is one entry in the long-lived counterparty memory.
// Profiles are shared across statements and cases.
type CounterpartyProfile struct {
	ID            string            `json:"id"`
	CanonicalName string            `json:"canonicalName"`
	Label         CounterpartyLabel `json:"label"`
	Note          string            `json:"note,omitempty"`
	Aliases       []string          `json:"aliases,omitempty"`
	Confidence    float64           `json:"confidence"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// LearningItem is a suggested memory change awaiting human review.
type LearningItem struct {
	ID             string            `json:"id"`
	SuggestedName  string            `json:"suggestedName"`
	SuggestedLabel CounterpartyLabel `json:"suggestedLabel"`
	EvidenceTxIDs  []string          `json:"evidenceTxIds,omitempty"`
	Status         string            `json:"status"` // pending/accepted/rejected
	CreatedAt      time.Time         `json:"createdAt"`
}

// MonthlyProfile is the per-month statistical baseline used by the anomaly
// detectors. Keyed by YYYY-MM.
type MonthlyProfile struct {
	Month          string              `json:"month"`
	TxCount        int                 `json:"txCount"`
	TotalCredit    Money               `json:"totalCredit"`
	TotalDebit     Money               `json:"totalDebit"` // absolute value
	Amounts        []Money             `json:"-"`          // |amount| vector for stats
	Counterparties map[string]struct{} `json:"-"`          // lowercased, <=50 chars
	ChannelCounts  map[Channel]int     `json:"channelCounts"`
	CategoryTotals map[string]Money    `json:"categoryTotals"`
}
