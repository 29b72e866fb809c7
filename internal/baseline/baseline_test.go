package baseline

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aistate/aml-engine/internal/rules"
	"github.com/aistate/aml-engine/pkg/models"
)

func classifierForTest(t *testing.T) *rules.Classifier {
	t.Helper()
	store, err := rules.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store.Classifier()
}

func txn(id, date string, amount string, channel models.Channel, cp string) models.NormalizedTransaction {
	amt, _ := decimal.NewFromString(amount)
	return models.NormalizedTransaction{
		ID: id,
		RawTransaction: models.RawTransaction{
			Date:   date,
			Amount: amt,
		},
		CounterpartyClean: cp,
		Channel:           channel,
	}
}

func TestBuildGroupsByMonth(t *testing.T) {
	txns := []models.NormalizedTransaction{
		txn("t1", "2024-01-05", "-150.00", models.ChannelCard, "BIEDRONKA"),
		txn("t2", "2024-01-10", "5000.00", models.ChannelTransfer, "PRACODAWCA"),
		txn("t3", "2024-02-01", "-800.00", models.ChannelTransfer, "WYNAJEM"),
	}
	b := Build(txns)

	if len(b.Months) != 2 {
		t.Fatalf("months = %d, want 2", len(b.Months))
	}
	jan := b.Months["2024-01"]
	if jan.TxCount != 2 {
		t.Errorf("jan count = %d, want 2", jan.TxCount)
	}
	if jan.TotalCredit.StringFixed(2) != "5000.00" {
		t.Errorf("jan credit = %s", jan.TotalCredit.StringFixed(2))
	}
	if jan.TotalDebit.StringFixed(2) != "150.00" {
		t.Errorf("jan debit = %s, want positive 150.00", jan.TotalDebit.StringFixed(2))
	}
	if _, ok := jan.Counterparties["biedronka"]; !ok {
		t.Error("counterparty set should be lowercased")
	}
	if jan.ChannelCounts[models.ChannelCard] != 1 {
		t.Errorf("channel counts = %v", jan.ChannelCounts)
	}
	if got := b.SortedMonths(); got[0] != "2024-01" || got[1] != "2024-02" {
		t.Errorf("SortedMonths = %v", got)
	}
}

func TestLargeOutlierDetector(t *testing.T) {
	cls := classifierForTest(t)
	var txns []models.NormalizedTransaction
	for i := 0; i < 20; i++ {
		txns = append(txns, txn("small", "2024-01-02", "-100.00", models.ChannelCard, "SKLEP"))
	}
	txns = append(txns, txn("big", "2024-01-15", "-50000.00", models.ChannelTransfer, "NIEZNANY"))

	alerts := detectLargeOutliers(txns, cls.Anomaly(), cls)
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	a := alerts[0]
	if a.AlertType != "LARGE_OUTLIER" {
		t.Errorf("type = %s", a.AlertType)
	}
	if a.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high for extreme z", a.Severity)
	}
	if len(a.EvidenceTxIDs) != 1 || a.EvidenceTxIDs[0] != "big" {
		t.Errorf("evidence = %v", a.EvidenceTxIDs)
	}
	if !strings.Contains(a.Explain, "odbiega") {
		t.Errorf("explain = %q", a.Explain)
	}
}

func TestLargeOutlierNeedsVariance(t *testing.T) {
	cls := classifierForTest(t)
	txns := []models.NormalizedTransaction{
		txn("a", "2024-01-01", "-100.00", models.ChannelCard, "X"),
		txn("b", "2024-01-02", "-100.00", models.ChannelCard, "X"),
	}
	if alerts := detectLargeOutliers(txns, cls.Anomaly(), cls); alerts != nil {
		t.Errorf("zero stddev should emit nothing, got %v", alerts)
	}
}

func TestNewCounterpartyLarge(t *testing.T) {
	cls := classifierForTest(t)
	txns := []models.NormalizedTransaction{
		txn("t1", "2024-01-02", "-1000.00", models.ChannelTransfer, "CZYNSZ"),
		txn("t2", "2024-01-20", "-900.00", models.ChannelTransfer, "NOWA FIRMA"),
		txn("t3", "2024-01-25", "-50.00", models.ChannelCard, "INNY NOWY"),
	}
	b := Build(txns)
	historical := map[string]struct{}{"czynsz": {}}

	alerts := detectNewCounterpartyLarge(txns, b, historical, nil, cls.Anomaly(), cls)
	// Monthly debit avg 1950; threshold 0.3*1950 = 585. Only t2 is both
	// new and above it.
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].EvidenceTxIDs[0] != "t2" {
		t.Errorf("evidence = %v", alerts[0].EvidenceTxIDs)
	}
	if alerts[0].Severity != models.SeverityMedium {
		t.Errorf("severity = %s", alerts[0].Severity)
	}
}

func TestP2PBurstFiresOnce(t *testing.T) {
	cls := classifierForTest(t)
	dates := []string{"2024-01-01", "2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}
	var txns []models.NormalizedTransaction
	for i, d := range dates {
		txns = append(txns, txn(string(rune('a'+i)), d, "-200.00", models.ChannelBlikP2P, "OSOBA"))
	}

	a := detectBurst(txns, models.ChannelBlikP2P, 7, cls.Anomaly().P2PBurstCount, "P2P_BURST", cls)
	if a == nil {
		t.Fatal("expected a burst alert")
	}
	if a.AlertType != "P2P_BURST" {
		t.Errorf("type = %s", a.AlertType)
	}
	if len(a.EvidenceTxIDs) > 10 {
		t.Errorf("evidence capped at 10, got %d", len(a.EvidenceTxIDs))
	}
	if len(a.EvidenceTxIDs) != 6 {
		t.Errorf("evidence = %d, want all six in-window txns", len(a.EvidenceTxIDs))
	}
}

func TestP2PBurstBelowThreshold(t *testing.T) {
	cls := classifierForTest(t)
	txns := []models.NormalizedTransaction{
		txn("a", "2024-01-01", "-200.00", models.ChannelBlikP2P, "OSOBA"),
		txn("b", "2024-01-02", "-200.00", models.ChannelBlikP2P, "OSOBA"),
	}
	if a := detectBurst(txns, models.ChannelBlikP2P, 7, cls.Anomaly().P2PBurstCount, "P2P_BURST", cls); a != nil {
		t.Errorf("two P2P txns should not fire, got %+v", a)
	}
}

func TestCashClusterWindow(t *testing.T) {
	cls := classifierForTest(t)
	// Three withdrawals but the third is outside any 3-day window.
	spread := []models.NormalizedTransaction{
		txn("a", "2024-01-01", "-500.00", models.ChannelCash, "BANKOMAT"),
		txn("b", "2024-01-02", "-500.00", models.ChannelCash, "BANKOMAT"),
		txn("c", "2024-01-10", "-500.00", models.ChannelCash, "BANKOMAT"),
	}
	if a := detectBurst(spread, models.ChannelCash, 3, cls.Anomaly().CashClusterCount, "CASH_CLUSTER", cls); a != nil {
		t.Errorf("spread withdrawals should not cluster, got %+v", a)
	}

	tight := []models.NormalizedTransaction{
		txn("a", "2024-01-01", "-500.00", models.ChannelCash, "BANKOMAT"),
		txn("b", "2024-01-02", "-500.00", models.ChannelCash, "BANKOMAT"),
		txn("c", "2024-01-03", "-500.00", models.ChannelCash, "BANKOMAT"),
	}
	a := detectBurst(tight, models.ChannelCash, 3, cls.Anomaly().CashClusterCount, "CASH_CLUSTER", cls)
	if a == nil {
		t.Fatal("three withdrawals in three days should cluster")
	}
	if !strings.Contains(a.Explain, "gotówkowych") {
		t.Errorf("explain = %q", a.Explain)
	}
}

func TestSpendingOverIncome(t *testing.T) {
	cls := classifierForTest(t)
	txns := []models.NormalizedTransaction{
		txn("in", "2024-01-05", "1000.00", models.ChannelTransfer, "PRACODAWCA"),
		txn("out1", "2024-01-10", "-900.00", models.ChannelCard, "SKLEP"),
		txn("out2", "2024-01-15", "-700.00", models.ChannelCard, "SKLEP"),
		// February: spending below income, no alert.
		txn("in2", "2024-02-05", "1000.00", models.ChannelTransfer, "PRACODAWCA"),
		txn("out3", "2024-02-10", "-100.00", models.ChannelCard, "SKLEP"),
	}
	b := Build(txns)

	alerts := detectSpendingOverIncome(txns, b, cls.Anomaly(), cls)
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	a := alerts[0]
	// Ratio 1.6 crosses the high bar.
	if a.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", a.Severity)
	}
	if !strings.Contains(a.Explain, "2024-01") {
		t.Errorf("explain = %q", a.Explain)
	}
	for _, id := range a.EvidenceTxIDs {
		if id == "in" || id == "in2" || id == "out3" {
			t.Errorf("evidence includes wrong txn %s", id)
		}
	}
}

func TestDetectDeterministicOrder(t *testing.T) {
	cls := classifierForTest(t)
	txns := []models.NormalizedTransaction{
		txn("in", "2024-01-05", "100.00", models.ChannelTransfer, "A"),
		txn("out", "2024-01-10", "-200.00", models.ChannelCard, "B"),
	}
	b := Build(txns)

	first := Detect(txns, b, nil, nil, cls)
	second := Detect(txns, b, nil, nil, cls)
	if len(first) != len(second) {
		t.Fatalf("run lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].AlertType != second[i].AlertType || first[i].Explain != second[i].Explain {
			t.Errorf("alert %d differs across runs", i)
		}
	}
}

func TestMarkRecurring(t *testing.T) {
	txns := []models.NormalizedTransaction{
		txn("n1", "2024-01-10", "-29.99", models.ChannelCard, "NETFLIX"),
		txn("n2", "2024-02-09", "-29.99", models.ChannelCard, "NETFLIX"),
		txn("n3", "2024-03-10", "-29.99", models.ChannelCard, "NETFLIX"),
		txn("x1", "2024-01-11", "-500.00", models.ChannelCard, "SKLEP"),
		txn("x2", "2024-01-20", "-500.00", models.ChannelCard, "SKLEP"),
	}
	marked := MarkRecurring(txns)
	if marked != 3 {
		t.Fatalf("marked = %d, want 3", marked)
	}
	for i := 0; i < 3; i++ {
		if !txns[i].IsRecurring || txns[i].RecurringGroup != "netflix" {
			t.Errorf("txn %s not marked recurring: %+v", txns[i].ID, txns[i])
		}
	}
	if txns[3].IsRecurring || txns[4].IsRecurring {
		t.Error("non-monthly pair must not be recurring")
	}
}

func TestMarkRecurringAmountDrift(t *testing.T) {
	// A 50% amount change breaks the run.
	txns := []models.NormalizedTransaction{
		txn("a", "2024-01-10", "-100.00", models.ChannelCard, "ABONAMENT"),
		txn("b", "2024-02-09", "-150.00", models.ChannelCard, "ABONAMENT"),
		txn("c", "2024-03-11", "-100.00", models.ChannelCard, "ABONAMENT"),
	}
	if marked := MarkRecurring(txns); marked != 0 {
		t.Errorf("marked = %d, want 0", marked)
	}
}
