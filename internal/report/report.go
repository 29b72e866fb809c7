package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/aistate/aml-engine/pkg/models"
)

// Self-contained HTML case report. Pure function over pipeline outputs;
// no file or network access at render time.

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"amount": func(m models.Money) string { return models.AmountString(m) },
	"pct":    func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
}).Parse(reportTemplate))

// Data is everything the report shows.
type Data struct {
	CaseName     string
	Info         models.StatementInfo
	Result       *models.PipelineResult
	Transactions []models.NormalizedTransaction
	Alerts       []models.Alert
	Reasons      []models.RiskReason
	GeneratedAt  string
}

// RiskClass maps the aggregate score to a CSS class.
func (d *Data) RiskClass() string {
	switch {
	case d.Result.RiskScore >= 70:
		return "risk-high"
	case d.Result.RiskScore >= 40:
		return "risk-medium"
	case d.Result.RiskScore > 0:
		return "risk-low"
	default:
		return "risk-none"
	}
}

// FlaggedTransactions returns only the transactions carrying risk tags,
// in statement order.
func (d *Data) FlaggedTransactions() []models.NormalizedTransaction {
	var out []models.NormalizedTransaction
	for i := range d.Transactions {
		if len(d.Transactions[i].RiskTags) > 0 {
			out = append(out, d.Transactions[i])
		}
	}
	return out
}

// Render produces the HTML report.
func Render(data *Data) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %v", err)
	}
	return buf.String(), nil
}
