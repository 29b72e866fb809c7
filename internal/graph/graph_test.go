package graph

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aistate/aml-engine/pkg/models"
)

func txn(id, date, amount, cp string, channel models.Channel, tags ...string) models.NormalizedTransaction {
	amt, _ := decimal.NewFromString(amount)
	return models.NormalizedTransaction{
		ID: id,
		RawTransaction: models.RawTransaction{
			Date:   date,
			Amount: amt,
		},
		CounterpartyClean: cp,
		Channel:           channel,
		RiskTags:          tags,
	}
}

func findNode(t *testing.T, g *models.Graph, id string) models.Node {
	t.Helper()
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %s not in graph", id)
	return models.Node{}
}

func TestBuildBasicStructure(t *testing.T) {
	txns := []models.NormalizedTransaction{
		txn("t1", "2024-01-05", "-150.00", "BIEDRONKA", models.ChannelCard),
		txn("t2", "2024-01-10", "5000.00", "PRACODAWCA SA", models.ChannelTransfer),
	}
	g := Build(txns, "Jan Kowalski")

	if g.Stats.TotalNodes != 3 || g.Stats.TotalEdges != 2 || g.Stats.TotalTransactions != 2 {
		t.Fatalf("stats = %+v", g.Stats)
	}

	own := findNode(t, g, "account_own")
	if own.Type != models.NodeAccount || own.Cluster != models.ClusterAccount {
		t.Errorf("own node = %+v", own)
	}
	if own.Label != "Jan Kowalski" {
		t.Errorf("own label = %q", own.Label)
	}
	if own.Metadata["tx_count"] != "2" || own.Metadata["total_amount"] != "5150.00" {
		t.Errorf("own metadata = %v", own.Metadata)
	}

	merchant := findNode(t, g, "cp_biedronka")
	if merchant.Type != models.NodeMerchant {
		t.Errorf("card counterparty type = %s, want MERCHANT", merchant.Type)
	}

	// Debit flows out of the account, credit flows in.
	for _, e := range g.Edges {
		switch e.Type {
		case models.EdgeCardPayment:
			if e.Source != "account_own" || e.Target != "cp_biedronka" {
				t.Errorf("debit edge = %+v", e)
			}
		case models.EdgeTransfer:
			if e.Source != "cp_pracodawca sa" || e.Target != "account_own" {
				t.Errorf("credit edge = %+v", e)
			}
		}
	}
}

func TestEdgeAggregation(t *testing.T) {
	var txns []models.NormalizedTransaction
	for i := 0; i < 25; i++ {
		txns = append(txns, txn("t", "2024-01-02", "-10.00", "ZABKA", models.ChannelCard))
	}
	txns[4].Date = "2024-01-01"
	txns[9].Date = "2024-03-01"

	g := Build(txns, "")
	if len(g.Edges) != 1 {
		t.Fatalf("edges = %d, want 1 aggregated", len(g.Edges))
	}
	e := g.Edges[0]
	if e.TxCount != 25 {
		t.Errorf("txCount = %d", e.TxCount)
	}
	if e.TotalAmount.StringFixed(2) != "250.00" {
		t.Errorf("totalAmount = %s", e.TotalAmount.StringFixed(2))
	}
	if len(e.TxIDs) != 20 {
		t.Errorf("txIds = %d, want capped at 20", len(e.TxIDs))
	}
	if e.FirstDate != "2024-01-01" || e.LastDate != "2024-03-01" {
		t.Errorf("date span = %s..%s", e.FirstDate, e.LastDate)
	}
}

func TestRiskEscalationNeverDowngrades(t *testing.T) {
	txns := []models.NormalizedTransaction{
		txn("t1", "2024-01-02", "-100.00", "ZONDA", models.ChannelTransfer, "crypto"),
		txn("t2", "2024-01-03", "-100.00", "ZONDA", models.ChannelTransfer),
	}
	g := Build(txns, "")
	n := findNode(t, g, "cp_zonda")
	if n.RiskLevel != models.RiskHigh {
		t.Errorf("riskLevel = %s, want high kept after clean txn", n.RiskLevel)
	}
	if n.Cluster != models.ClusterCrypto {
		t.Errorf("cluster = %s", n.Cluster)
	}
	if g.Stats.Clusters[models.ClusterCrypto] != 1 {
		t.Errorf("clusters = %v", g.Stats.Clusters)
	}
}

func TestRiskLevelLadder(t *testing.T) {
	tests := []struct {
		name  string
		txn   models.NormalizedTransaction
		level models.RiskLevel
	}{
		{"blacklisted is high", txn("a", "2024-01-02", "-1.00", "X", models.ChannelTransfer, "BLACKLISTED"), models.RiskHigh},
		{"loans is medium", txn("b", "2024-01-02", "-1.00", "X", models.ChannelTransfer, "loans"), models.RiskMedium},
		{"score only is low", func() models.NormalizedTransaction {
			x := txn("c", "2024-01-02", "-1.00", "X", models.ChannelTransfer)
			x.RiskScore = 5
			return x
		}(), models.RiskLow},
		{"clean is none", txn("d", "2024-01-02", "-1.00", "X", models.ChannelTransfer), models.RiskNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := riskLevel(&tt.txn); got != tt.level {
				t.Errorf("riskLevel = %s, want %s", got, tt.level)
			}
		})
	}
}

func TestUnknownCounterpartyAndCashNode(t *testing.T) {
	txns := []models.NormalizedTransaction{
		txn("t1", "2024-01-02", "-300.00", "", models.ChannelCash),
	}
	g := Build(txns, "")
	n := findNode(t, g, "cp_unknown")
	if n.Type != models.NodeCash {
		t.Errorf("type = %s, want CASH_NODE", n.Type)
	}
	if n.Label != "Nieznany" {
		t.Errorf("label = %q", n.Label)
	}
}

func TestDeterministicOrdering(t *testing.T) {
	txns := []models.NormalizedTransaction{
		txn("t1", "2024-01-02", "-10.00", "CCC", models.ChannelCard),
		txn("t2", "2024-01-02", "-10.00", "AAA", models.ChannelCard),
		txn("t3", "2024-01-02", "-10.00", "BBB", models.ChannelCard),
	}
	g1 := Build(txns, "")
	g2 := Build(txns, "")
	for i := range g1.Nodes {
		if g1.Nodes[i].ID != g2.Nodes[i].ID {
			t.Fatalf("node order differs: %s vs %s", g1.Nodes[i].ID, g2.Nodes[i].ID)
		}
	}
	if g1.Nodes[0].ID != "account_own" || g1.Nodes[1].ID != "cp_aaa" {
		t.Errorf("nodes not sorted: %s, %s", g1.Nodes[0].ID, g1.Nodes[1].ID)
	}
}
