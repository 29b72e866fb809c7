package db

import (
	"context"
	"fmt"

	"github.com/aistate/aml-engine/pkg/models"
)

// SaveGraph replaces the persisted flow graph of a case: prior nodes and
// edges are deleted and the new ones inserted inside one transaction, so
// readers never observe a half-swapped graph. DB row ids are prefixed with
// the case id; the graph-local ids stay intact for clients.
func (s *Store) SaveGraph(ctx context.Context, caseID string, g *models.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_edges WHERE case_id = ?`, caseID); err != nil {
		return fmt.Errorf("failed to clear graph edges: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_nodes WHERE case_id = ?`, caseID); err != nil {
		return fmt.Errorf("failed to clear graph nodes: %v", err)
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO graph_nodes (id, case_id, node_id, type, label, risk_level, cluster, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			caseID+":"+n.ID, caseID, n.ID, string(n.Type), n.Label,
			string(n.RiskLevel), string(n.Cluster), toJSON(n.Metadata))
		if err != nil {
			return fmt.Errorf("failed to insert graph node %s: %v", n.ID, err)
		}
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO graph_edges
				(id, case_id, source, target, type, tx_count, total_amount,
				 first_date, last_date, tx_ids)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			caseID+":"+e.ID, caseID, e.Source, e.Target, string(e.Type),
			e.TxCount, models.AmountString(e.TotalAmount), e.FirstDate,
			e.LastDate, toJSON(e.TxIDs))
		if err != nil {
			return fmt.Errorf("failed to insert graph edge %s: %v", e.ID, err)
		}
	}

	detail := toJSON(map[string]any{"nodes": len(g.Nodes), "edges": len(g.Edges)})
	if err := auditRow(ctx, tx, "system", "graph_saved", "case", caseID, detail); err != nil {
		return fmt.Errorf("failed to append audit row: %v", err)
	}

	return tx.Commit()
}

// LoadGraph reads back the persisted graph of a case with recomputed
// stats.
func (s *Store) LoadGraph(ctx context.Context, caseID string) (*models.Graph, error) {
	g := &models.Graph{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, type, label, risk_level, cluster, metadata
		FROM graph_nodes WHERE case_id = ? ORDER BY node_id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n models.Node
		var typ, risk, cluster, metadata string
		if err := rows.Scan(&n.ID, &typ, &n.Label, &risk, &cluster, &metadata); err != nil {
			return nil, err
		}
		n.Type = models.NodeType(typ)
		n.RiskLevel = models.RiskLevel(risk)
		n.Cluster = models.Cluster(cluster)
		n.Metadata = fromJSON[map[string]string](metadata)
		g.Nodes = append(g.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edgeRows, err := s.db.QueryContext(ctx, `
		SELECT source || '->' || target || '|' || type, source, target, type,
		       tx_count, total_amount, first_date, last_date, tx_ids
		FROM graph_edges WHERE case_id = ? ORDER BY source, target, type`, caseID)
	if err != nil {
		return nil, err
	}
	defer edgeRows.Close()
	txTotal := 0
	for edgeRows.Next() {
		var e models.Edge
		var typ, amount, txIDs string
		if err := edgeRows.Scan(&e.ID, &e.Source, &e.Target, &typ, &e.TxCount, &amount, &e.FirstDate, &e.LastDate, &txIDs); err != nil {
			return nil, err
		}
		e.Type = models.EdgeType(typ)
		if e.TotalAmount, err = models.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("bad stored edge amount %q: %v", amount, err)
		}
		e.TxIDs = fromJSON[[]string](txIDs)
		txTotal += e.TxCount
		g.Edges = append(g.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	g.Stats = models.GraphStats{
		TotalNodes:        len(g.Nodes),
		TotalEdges:        len(g.Edges),
		TotalTransactions: txTotal,
		Clusters:          map[models.Cluster]int{},
	}
	for i := range g.Nodes {
		g.Stats.Clusters[g.Nodes[i].Cluster]++
	}
	return g, nil
}
