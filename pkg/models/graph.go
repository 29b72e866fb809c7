package models

// Node and edge vocabulary of the money-flow graph.

type NodeType string

const (
	NodeAccount         NodeType = "ACCOUNT"
	NodeCounterparty    NodeType = "COUNTERPARTY"
	NodeMerchant        NodeType = "MERCHANT"
	NodeCash            NodeType = "CASH_NODE"
	NodePaymentProvider NodeType = "PAYMENT_PROVIDER"
)

type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskLevelRank orders risk levels for escalation-only merges.
var riskLevelRank = map[RiskLevel]int{
	RiskNone: 0, RiskLow: 1, RiskMedium: 2, RiskHigh: 3,
}

// EscalateRisk returns the higher of two risk levels. Node merges only ever
// move risk upward.
func EscalateRisk(current, candidate RiskLevel) RiskLevel {
	if riskLevelRank[candidate] > riskLevelRank[current] {
		return candidate
	}
	return current
}

type Cluster string

const (
	ClusterNormal   Cluster = "NORMAL"
	ClusterLoans    Cluster = "LOANS"
	ClusterRisky    Cluster = "RISKY"
	ClusterGambling Cluster = "GAMBLING"
	ClusterCrypto   Cluster = "CRYPTO"
	ClusterAccount  Cluster = "ACCOUNT"
)

// clusterRank orders clusters for escalation; CRYPTO and GAMBLING are peers
// at the top, ACCOUNT is fixed and never re-clustered.
var clusterRank = map[Cluster]int{
	ClusterNormal: 0, ClusterLoans: 1, ClusterRisky: 2,
	ClusterGambling: 3, ClusterCrypto: 3,
}

// EscalateCluster returns the higher-priority cluster of the two.
func EscalateCluster(current, candidate Cluster) Cluster {
	if current == ClusterAccount {
		return current
	}
	if clusterRank[candidate] > clusterRank[current] {
		return candidate
	}
	return current
}

type EdgeType string

const (
	EdgeTransfer     EdgeType = "TRANSFER"
	EdgeCardPayment  EdgeType = "CARD_PAYMENT"
	EdgeBlikP2P      EdgeType = "BLIK_P2P"
	EdgeBlikMerchant EdgeType = "BLIK_MERCHANT"
	EdgeCash         EdgeType = "CASH"
	EdgeRefund       EdgeType = "REFUND"
	EdgeFee          EdgeType = "FEE"
)

// Node is one vertex of the flow graph.
type Node struct {
	ID        string            `json:"id"`
	Type      NodeType          `json:"type"`
	Label     string            `json:"label"`
	RiskLevel RiskLevel         `json:"riskLevel"`
	Cluster   Cluster           `json:"cluster"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Edge is one aggregated flow between two nodes, deduplicated by
// "source->target|type".
type Edge struct {
	ID          string   `json:"id"`
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Type        EdgeType `json:"type"`
	TxCount     int      `json:"txCount"`
	TotalAmount Money    `json:"totalAmount"`
	FirstDate   string   `json:"firstDate"`
	LastDate    string   `json:"lastDate"`
	TxIDs       []string `json:"txIds,omitempty"` // capped at 20
}

// GraphStats summarizes a built graph.
type GraphStats struct {
	TotalNodes        int             `json:"total_nodes"`
	TotalEdges        int             `json:"total_edges"`
	TotalTransactions int             `json:"total_transactions"`
	Clusters          map[Cluster]int `json:"clusters"`
}

// Graph is the full directed money-flow graph for one case.
type Graph struct {
	Nodes []Node     `json:"nodes"`
	Edges []Edge     `json:"edges"`
	Stats GraphStats `json:"stats"`
}
