package graph

import (
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/aistate/aml-engine/pkg/models"
)

const (
	ownAccountID  = "account_own"
	edgeTxIDLimit = 20
)

// Build constructs the directed money-flow graph for one statement's
// classified transactions. Debits flow account→counterparty, credits the
// other way. Nodes and edges are aggregated; repeated counterparties
// escalate risk and cluster, never downgrade them.
func Build(txns []models.NormalizedTransaction, holderLabel string) *models.Graph {
	if holderLabel == "" {
		holderLabel = "Rachunek własny"
	}
	nodes := map[string]*models.Node{
		ownAccountID: {
			ID:        ownAccountID,
			Type:      models.NodeAccount,
			Label:     holderLabel,
			RiskLevel: models.RiskNone,
			Cluster:   models.ClusterAccount,
			Metadata:  map[string]string{"total_amount": "0.00", "tx_count": "0"},
		},
	}
	edges := map[string]*models.Edge{}

	for i := range txns {
		txn := &txns[i]
		cpID := "cp_" + counterpartyKey(txn.CounterpartyClean)

		node, ok := nodes[cpID]
		if !ok {
			node = &models.Node{
				ID:        cpID,
				Type:      nodeType(txn.Channel),
				Label:     nodeLabel(txn.CounterpartyClean),
				RiskLevel: models.RiskNone,
				Cluster:   models.ClusterNormal,
				Metadata:  map[string]string{"total_amount": "0.00", "tx_count": "0"},
			}
			nodes[cpID] = node
		}
		node.RiskLevel = models.EscalateRisk(node.RiskLevel, riskLevel(txn))
		node.Cluster = models.EscalateCluster(node.Cluster, cluster(txn))
		addToMetadata(node, txn.AbsAmount())
		addToMetadata(nodes[ownAccountID], txn.AbsAmount())

		source, target := ownAccountID, cpID
		if txn.Direction() == models.DirectionCredit {
			source, target = cpID, ownAccountID
		}
		et := edgeType(txn.Channel)
		key := source + "->" + target + "|" + string(et)
		edge, ok := edges[key]
		if !ok {
			edge = &models.Edge{
				ID:        key,
				Source:    source,
				Target:    target,
				Type:      et,
				FirstDate: txn.Date,
				LastDate:  txn.Date,
			}
			edges[key] = edge
		}
		edge.TxCount++
		edge.TotalAmount = edge.TotalAmount.Add(txn.AbsAmount())
		if txn.Date != "" {
			if edge.FirstDate == "" || txn.Date < edge.FirstDate {
				edge.FirstDate = txn.Date
			}
			if txn.Date > edge.LastDate {
				edge.LastDate = txn.Date
			}
		}
		if len(edge.TxIDs) < edgeTxIDLimit {
			edge.TxIDs = append(edge.TxIDs, txn.ID)
		}
	}

	g := &models.Graph{}
	for _, id := range sortedKeys(nodes) {
		g.Nodes = append(g.Nodes, *nodes[id])
	}
	for _, key := range sortedKeys(edges) {
		g.Edges = append(g.Edges, *edges[key])
	}

	g.Stats = models.GraphStats{
		TotalNodes:        len(g.Nodes),
		TotalEdges:        len(g.Edges),
		TotalTransactions: len(txns),
		Clusters:          map[models.Cluster]int{},
	}
	for i := range g.Nodes {
		g.Stats.Clusters[g.Nodes[i].Cluster]++
	}
	log.Printf("[Graph] Built %d nodes, %d edges from %d transactions",
		g.Stats.TotalNodes, g.Stats.TotalEdges, len(txns))
	return g
}

func counterpartyKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "unknown"
	}
	if len(key) > 80 {
		key = key[:80]
	}
	return key
}

func nodeLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Nieznany"
	}
	return name
}

func nodeType(ch models.Channel) models.NodeType {
	switch ch {
	case models.ChannelCard, models.ChannelBlikMerchant:
		return models.NodeMerchant
	case models.ChannelCash:
		return models.NodeCash
	case models.ChannelFee:
		return models.NodePaymentProvider
	default:
		return models.NodeCounterparty
	}
}

func edgeType(ch models.Channel) models.EdgeType {
	switch ch {
	case models.ChannelCard:
		return models.EdgeCardPayment
	case models.ChannelTransfer:
		return models.EdgeTransfer
	case models.ChannelBlikP2P:
		return models.EdgeBlikP2P
	case models.ChannelBlikMerchant:
		return models.EdgeBlikMerchant
	case models.ChannelCash:
		return models.EdgeCash
	case models.ChannelRefund:
		return models.EdgeRefund
	case models.ChannelFee:
		return models.EdgeFee
	default:
		return models.EdgeTransfer
	}
}

func riskLevel(txn *models.NormalizedTransaction) models.RiskLevel {
	for _, tag := range txn.RiskTags {
		switch strings.ToLower(tag) {
		case "crypto", "gambling", "blacklisted":
			return models.RiskHigh
		}
	}
	for _, tag := range txn.RiskTags {
		switch strings.ToLower(tag) {
		case "risky", "loans":
			return models.RiskMedium
		}
	}
	if txn.RiskScore > 0 {
		return models.RiskLow
	}
	return models.RiskNone
}

// cluster maps the first matching risk tag to a cluster by prefix.
func cluster(txn *models.NormalizedTransaction) models.Cluster {
	for _, tag := range txn.RiskTags {
		lower := strings.ToLower(tag)
		switch {
		case strings.HasPrefix(lower, "crypto"):
			return models.ClusterCrypto
		case strings.HasPrefix(lower, "gambling"):
			return models.ClusterGambling
		case strings.HasPrefix(lower, "loans"):
			return models.ClusterLoans
		case strings.HasPrefix(lower, "risky"):
			return models.ClusterRisky
		}
	}
	return models.ClusterNormal
}

func addToMetadata(node *models.Node, abs models.Money) {
	total, err := models.ParseAmount(node.Metadata["total_amount"])
	if err != nil {
		total = models.Money{}
	}
	node.Metadata["total_amount"] = models.AmountString(total.Add(abs))
	count, _ := strconv.Atoi(node.Metadata["tx_count"])
	node.Metadata["tx_count"] = strconv.Itoa(count + 1)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
