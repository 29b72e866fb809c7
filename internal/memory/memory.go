package memory

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aistate/aml-engine/internal/textutil"
	"github.com/aistate/aml-engine/pkg/models"
)

// Counterparty memory: the persistent, cross-statement knowledge base of
// known parties, their aliases and labels. All lookups go through an
// in-memory index guarded by a RW lock; mutations are echoed to the
// persister so the memory survives restarts.

// Persister stores memory mutations durably. May be nil for ephemeral use
// (tests, dry runs).
type Persister interface {
	SaveProfile(p models.CounterpartyProfile) error
	SaveAlias(profileID, alias string) error
	SaveLearningItem(item models.LearningItem) error
}

// Config holds the resolution tuning knobs.
type Config struct {
	// LinkThreshold is the minimum fuzzy similarity to link a name to an
	// existing profile.
	LinkThreshold float64
	// NewConfidence is the confidence recorded when a fresh profile is
	// created for an unmatched name.
	NewConfidence float64
}

// DefaultConfig matches the production tuning.
func DefaultConfig() Config {
	return Config{LinkThreshold: 0.85, NewConfidence: 0.5}
}

// Memory is the runtime counterparty knowledge base.
type Memory struct {
	mu        sync.RWMutex
	cfg       Config
	persister Persister

	profiles map[string]*models.CounterpartyProfile // by id
	byName   map[string]string                      // normalized name/alias -> profile id
	queue    map[string]*models.LearningItem        // by id
}

func New(cfg Config, persister Persister) *Memory {
	return &Memory{
		cfg:       cfg,
		persister: persister,
		profiles:  make(map[string]*models.CounterpartyProfile),
		byName:    make(map[string]string),
		queue:     make(map[string]*models.LearningItem),
	}
}

// Load seeds the memory from persisted profiles, typically at process
// start.
func (m *Memory) Load(profiles []models.CounterpartyProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range profiles {
		p := profiles[i]
		m.profiles[p.ID] = &p
		m.byName[textutil.NormalizeName(p.CanonicalName)] = p.ID
		for _, alias := range p.Aliases {
			m.byName[textutil.NormalizeName(alias)] = p.ID
		}
	}
	log.Printf("[Memory] Loaded %d counterparty profiles", len(profiles))
}

// LoadQueue seeds pending learning items from persistence.
func (m *Memory) LoadQueue(items []models.LearningItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range items {
		item := items[i]
		m.queue[item.ID] = &item
	}
}

// Resolution is the outcome of resolving one raw name.
type Resolution struct {
	ProfileID  string
	Confidence float64
	Created    bool
}

// Resolve maps a raw counterparty name to a profile: exact match on
// canonical name or alias first (confidence 1.0), then fuzzy token-overlap
// against every known name; a score at or above the link threshold links
// and records the name as an alias, anything else creates a new profile.
func (m *Memory) Resolve(name string) Resolution {
	normalized := textutil.NormalizeName(name)
	if normalized == "" {
		return Resolution{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byName[normalized]; ok {
		return Resolution{ProfileID: id, Confidence: 1.0}
	}

	bestID, bestScore := "", 0.0
	for indexed, id := range m.byName {
		score := TokenOverlap(normalized, indexed)
		if score > bestScore {
			bestID, bestScore = id, score
		}
	}
	if bestID != "" && bestScore >= m.cfg.LinkThreshold {
		m.addAliasLocked(bestID, name)
		return Resolution{ProfileID: bestID, Confidence: bestScore}
	}

	p := &models.CounterpartyProfile{
		ID:            newID(),
		CanonicalName: textutil.CollapseWhitespace(name),
		Label:         models.LabelNeutral,
		Confidence:    m.cfg.NewConfidence,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	m.profiles[p.ID] = p
	m.byName[normalized] = p.ID
	m.persistProfile(p)
	return Resolution{ProfileID: p.ID, Confidence: m.cfg.NewConfidence, Created: true}
}

// GetOrCreate resolves a name observed on a statement, creating a profile
// when no existing one matches.
func (m *Memory) GetOrCreate(name, sourceBank string) (string, float64) {
	res := m.Resolve(name)
	if res.Created && sourceBank != "" {
		m.mu.Lock()
		if p, ok := m.profiles[res.ProfileID]; ok {
			if p.Note == "" {
				p.Note = "pierwszy raz na wyciągu: " + sourceBank
				m.persistProfile(p)
			}
		}
		m.mu.Unlock()
	}
	return res.ProfileID, res.Confidence
}

// AddAlias attaches an alias to a profile. Idempotent; an alias belongs to
// exactly one profile, so re-pointing an existing alias is rejected.
func (m *Memory) AddAlias(profileID, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[profileID]; !ok {
		return fmt.Errorf("unknown profile %s", profileID)
	}
	normalized := textutil.NormalizeName(alias)
	if owner, ok := m.byName[normalized]; ok {
		if owner == profileID {
			return nil
		}
		return fmt.Errorf("alias %q already belongs to profile %s", alias, owner)
	}
	m.addAliasLocked(profileID, alias)
	return nil
}

func (m *Memory) addAliasLocked(profileID, alias string) {
	p := m.profiles[profileID]
	normalized := textutil.NormalizeName(alias)
	m.byName[normalized] = profileID
	p.Aliases = append(p.Aliases, textutil.CollapseWhitespace(alias))
	p.UpdatedAt = time.Now().UTC()
	m.persistProfile(p)
	if m.persister != nil {
		if err := m.persister.SaveAlias(profileID, textutil.CollapseWhitespace(alias)); err != nil {
			log.Printf("[Memory] Failed to persist alias: %v", err)
		}
	}
}

// SetLabel changes a profile's standing. The new label reaches future
// classifications through GetLabels; past risk tags are never rewritten.
func (m *Memory) SetLabel(profileID string, label models.CounterpartyLabel, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[profileID]
	if !ok {
		return fmt.Errorf("unknown profile %s", profileID)
	}
	p.Label = label
	if note != "" {
		p.Note = note
	}
	p.UpdatedAt = time.Now().UTC()
	m.persistProfile(p)
	log.Printf("[Memory] Profile %s labeled %s", profileID, label)
	return nil
}

// Profile returns a copy of the profile, if present.
func (m *Memory) Profile(profileID string) (models.CounterpartyProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[profileID]
	if !ok {
		return models.CounterpartyProfile{}, false
	}
	return *p, true
}

// Profiles lists all profiles, sorted by canonical name for stable output.
func (m *Memory) Profiles() []models.CounterpartyProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.CounterpartyProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CanonicalName < out[b].CanonicalName })
	return out
}

// GetLabels snapshots the non-neutral labels keyed by normalized name,
// for bulk feed into the rule engine. Aliases carry their profile's label.
func (m *Memory) GetLabels() map[string]models.CounterpartyLabel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.CounterpartyLabel)
	for name, id := range m.byName {
		if p, ok := m.profiles[id]; ok && p.Label != models.LabelNeutral {
			out[name] = p.Label
		}
	}
	return out
}

// AddToLearningQueue files a suggested label change for human review.
func (m *Memory) AddToLearningQueue(suggestedName string, suggestedLabel models.CounterpartyLabel, evidenceTxIDs []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &models.LearningItem{
		ID:             newID(),
		SuggestedName:  textutil.CollapseWhitespace(suggestedName),
		SuggestedLabel: suggestedLabel,
		EvidenceTxIDs:  evidenceTxIDs,
		Status:         "pending",
		CreatedAt:      time.Now().UTC(),
	}
	m.queue[item.ID] = item
	if m.persister != nil {
		if err := m.persister.SaveLearningItem(*item); err != nil {
			log.Printf("[Memory] Failed to persist learning item: %v", err)
		}
	}
	return item.ID
}

// PendingLearningItems lists unreviewed queue entries, oldest first.
func (m *Memory) PendingLearningItems() []models.LearningItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.LearningItem, 0, len(m.queue))
	for _, item := range m.queue {
		if item.Status == "pending" {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

// ResolveLearningItem applies a human decision to a queue entry. Accepting
// resolves (or creates) the named profile and applies the label.
func (m *Memory) ResolveLearningItem(itemID string, accept bool, label models.CounterpartyLabel, note string) error {
	m.mu.Lock()
	item, ok := m.queue[itemID]
	if !ok || item.Status != "pending" {
		m.mu.Unlock()
		return fmt.Errorf("no pending learning item %s", itemID)
	}
	if !accept {
		item.Status = "rejected"
		m.mu.Unlock()
		m.persistItem(item)
		return nil
	}
	item.Status = "accepted"
	name := item.SuggestedName
	if label == "" {
		label = item.SuggestedLabel
	}
	m.mu.Unlock()
	m.persistItem(item)

	res := m.Resolve(name)
	return m.SetLabel(res.ProfileID, label, note)
}

func (m *Memory) persistItem(item *models.LearningItem) {
	if m.persister != nil {
		if err := m.persister.SaveLearningItem(*item); err != nil {
			log.Printf("[Memory] Failed to persist learning item: %v", err)
		}
	}
}

func (m *Memory) persistProfile(p *models.CounterpartyProfile) {
	if m.persister != nil {
		if err := m.persister.SaveProfile(*p); err != nil {
			log.Printf("[Memory] Failed to persist profile %s: %v", p.ID, err)
		}
	}
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
