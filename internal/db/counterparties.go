package db

import (
	"context"

	"github.com/aistate/aml-engine/pkg/models"
)

// The counterparty tables back the long-lived memory. Writes come through
// the memory.Persister interface; a background context keeps them
// independent of any single request's lifetime.

// SaveProfile upserts one counterparty profile.
func (s *Store) SaveProfile(p models.CounterpartyProfile) error {
	_, err := s.db.Exec(`
		INSERT INTO counterparties (id, canonical_name, label, note, confidence)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			canonical_name = excluded.canonical_name,
			label = excluded.label,
			note = excluded.note,
			confidence = excluded.confidence,
			updated_at = datetime('now')`,
		p.ID, p.CanonicalName, string(p.Label), p.Note, p.Confidence)
	return err
}

// SaveAlias records one alias row; duplicates are ignored.
func (s *Store) SaveAlias(profileID, alias string) error {
	_, err := s.db.Exec(`
		INSERT INTO counterparty_aliases (counterparty_id, alias)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING`,
		profileID, alias)
	return err
}

// SaveLearningItem upserts one learning-queue entry.
func (s *Store) SaveLearningItem(item models.LearningItem) error {
	_, err := s.db.Exec(`
		INSERT INTO learning_queue (id, suggested_name, suggested_label, evidence_tx_ids, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status`,
		item.ID, item.SuggestedName, string(item.SuggestedLabel),
		toJSON(item.EvidenceTxIDs), item.Status)
	return err
}

// LoadProfiles reads the full counterparty memory for warm-starting the
// in-memory index on process boot.
func (s *Store) LoadProfiles(ctx context.Context) ([]models.CounterpartyProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, canonical_name, label, note, confidence, created_at, updated_at
		FROM counterparties ORDER BY canonical_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.CounterpartyProfile
	index := make(map[string]int)
	for rows.Next() {
		var p models.CounterpartyProfile
		var label, createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.CanonicalName, &label, &p.Note, &p.Confidence, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.Label = models.CounterpartyLabel(label)
		index[p.ID] = len(profiles)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aliasRows, err := s.db.QueryContext(ctx,
		`SELECT counterparty_id, alias FROM counterparty_aliases ORDER BY alias`)
	if err != nil {
		return nil, err
	}
	defer aliasRows.Close()
	for aliasRows.Next() {
		var id, alias string
		if err := aliasRows.Scan(&id, &alias); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			profiles[i].Aliases = append(profiles[i].Aliases, alias)
		}
	}
	return profiles, aliasRows.Err()
}

// LoadLearningQueue reads pending learning items.
func (s *Store) LoadLearningQueue(ctx context.Context) ([]models.LearningItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suggested_name, suggested_label, evidence_tx_ids, status
		FROM learning_queue WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.LearningItem
	for rows.Next() {
		var item models.LearningItem
		var label, evidence string
		if err := rows.Scan(&item.ID, &item.SuggestedName, &label, &evidence, &item.Status); err != nil {
			return nil, err
		}
		item.SuggestedLabel = models.CounterpartyLabel(label)
		item.EvidenceTxIDs = fromJSON[[]string](evidence)
		items = append(items, item)
	}
	return items, rows.Err()
}
