package models

// Severity levels for anomaly alerts.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert is one anomaly finding for a statement. Alerts are append-only.
type Alert struct {
	ID            string   `json:"id"`
	AlertType     string   `json:"alertType"` // LARGE_OUTLIER, P2P_BURST, ...
	Severity      string   `json:"severity"`
	ScoreDelta    int      `json:"scoreDelta"`
	Explain       string   `json:"explain"` // human-readable, values filled in
	EvidenceTxIDs []string `json:"evidenceTxIds,omitempty"`
}

// SeverityMeetsThreshold reports whether a severity is at or above minimum.
func SeverityMeetsThreshold(severity, minimum string) bool {
	levels := map[string]int{
		SeverityLow: 1, SeverityMedium: 2, SeverityHigh: 3, SeverityCritical: 4,
	}
	return levels[severity] >= levels[minimum]
}
