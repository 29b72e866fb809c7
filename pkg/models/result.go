package models

// RiskReason is one per-tag contribution to the aggregate risk score.
type RiskReason struct {
	Tag           string   `json:"tag"`
	Count         int      `json:"count"`
	Amount        Money    `json:"amount"`
	PctOfTotal    float64  `json:"pct_of_total"`
	ScoreDelta    float64  `json:"score_delta"`
	EvidenceTxIDs []string `json:"evidence_tx_ids,omitempty"` // first 10
}

// PipelineResult is what the pipeline entry point returns to callers.
type PipelineResult struct {
	Status           string       `json:"status"` // "ok" or "error"
	Error            string       `json:"error,omitempty"`
	CaseID           string       `json:"caseId,omitempty"`
	StatementID      string       `json:"statementId,omitempty"`
	Bank             string       `json:"bank,omitempty"`
	BankName         string       `json:"bankName,omitempty"`
	TransactionCount int          `json:"transactionCount"`
	RiskScore        int          `json:"riskScore"`
	RiskReasons      []RiskReason `json:"riskReasons,omitempty"`
	Alerts           []Alert      `json:"alerts,omitempty"`
	GraphStats       GraphStats   `json:"graphStats"`
	BalanceValid     bool         `json:"balanceValid"`
	OCRUsed          bool         `json:"ocrUsed"`
	Warnings         []string     `json:"warnings,omitempty"`
	ReportHTML       string       `json:"reportHtml,omitempty"`
	PipelineTimeSec  float64      `json:"pipelineTimeSec"`
}
