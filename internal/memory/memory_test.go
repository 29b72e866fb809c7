package memory

import (
	"testing"

	"github.com/aistate/aml-engine/pkg/models"
)

func TestResolveExactMatchAfterCreation(t *testing.T) {
	m := New(DefaultConfig(), nil)

	first := m.Resolve("BIEDRONKA 123 WARSZAWA")
	if !first.Created {
		t.Fatal("expected first resolve to create a profile")
	}
	if first.Confidence != 0.5 {
		t.Errorf("new profile confidence = %v, want 0.5", first.Confidence)
	}

	second := m.Resolve("biedronka 123 warszawa")
	if second.Created {
		t.Error("case-insensitive repeat should not create")
	}
	if second.ProfileID != first.ProfileID {
		t.Error("repeat resolve returned a different profile")
	}
	if second.Confidence != 1.0 {
		t.Errorf("exact match confidence = %v, want 1.0", second.Confidence)
	}
}

func TestResolveFuzzyLinksAndRecordsAlias(t *testing.T) {
	m := New(DefaultConfig(), nil)

	base := m.Resolve("JAN KOWALSKI PRZELEW FIRMOWY")
	// Diacritic variant of the same tokens folds to an identical set,
	// similarity 1.0.
	linked := m.Resolve("JAN KOWALSKI PRZELEW FIRMOWÝ")
	if linked.Created {
		t.Fatal("high-similarity name should link, not create")
	}
	if linked.ProfileID != base.ProfileID {
		t.Error("fuzzy match linked to wrong profile")
	}

	p, ok := m.Profile(base.ProfileID)
	if !ok {
		t.Fatal("profile vanished")
	}
	if len(p.Aliases) != 1 {
		t.Fatalf("aliases = %v, want the linked variant recorded", p.Aliases)
	}
}

func TestResolveBelowThresholdCreates(t *testing.T) {
	m := New(DefaultConfig(), nil)

	a := m.Resolve("BIEDRONKA WARSZAWA")
	b := m.Resolve("ZABKA KRAKOW")
	if !b.Created {
		t.Fatal("dissimilar name should create a new profile")
	}
	if a.ProfileID == b.ProfileID {
		t.Error("dissimilar names collapsed into one profile")
	}
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"jan kowalski", "jan kowalski", 1.0},
		{"jan kowalski", "kowalski jan", 1.0},
		{"żabka sp z o.o.", "zabka sp z o.o.", 1.0},
		{"jan kowalski", "anna nowak", 0.0},
		{"", "jan", 0.0},
	}
	for _, tt := range tests {
		if got := TokenOverlap(tt.a, tt.b); got != tt.want {
			t.Errorf("TokenOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAddAliasIdempotentAndExclusive(t *testing.T) {
	m := New(DefaultConfig(), nil)
	a := m.Resolve("FIRMA ALFA SP Z OO")
	b := m.Resolve("HURTOWNIA BETA KATOWICE")

	if err := m.AddAlias(a.ProfileID, "ALFA PRZELEW"); err != nil {
		t.Fatalf("AddAlias: %v", err)
	}
	if err := m.AddAlias(a.ProfileID, "ALFA PRZELEW"); err != nil {
		t.Errorf("repeat AddAlias should be a no-op, got %v", err)
	}
	if err := m.AddAlias(b.ProfileID, "ALFA PRZELEW"); err == nil {
		t.Error("alias re-pointing to another profile should fail")
	}

	p, _ := m.Profile(a.ProfileID)
	if len(p.Aliases) != 1 {
		t.Errorf("aliases = %v, want exactly one", p.Aliases)
	}
}

func TestSetLabelAndGetLabels(t *testing.T) {
	m := New(DefaultConfig(), nil)
	wl := m.Resolve("PRACODAWCA SP Z OO")
	bl := m.Resolve("KASYNO ONLINE LTD")
	m.Resolve("SKLEP NEUTRALNY")

	if err := m.SetLabel(wl.ProfileID, models.LabelWhitelist, "wypłata pensji"); err != nil {
		t.Fatalf("SetLabel: %v", err)
	}
	if err := m.SetLabel(bl.ProfileID, models.LabelBlacklist, ""); err != nil {
		t.Fatalf("SetLabel: %v", err)
	}
	if err := m.SetLabel("missing", models.LabelWhitelist, ""); err == nil {
		t.Error("SetLabel on unknown profile should fail")
	}

	labels := m.GetLabels()
	if labels["pracodawca sp z oo"] != models.LabelWhitelist {
		t.Errorf("labels = %v, want whitelist for employer", labels)
	}
	if labels["kasyno online ltd"] != models.LabelBlacklist {
		t.Errorf("labels = %v, want blacklist for casino", labels)
	}
	if _, ok := labels["sklep neutralny"]; ok {
		t.Error("neutral profiles must not appear in the label snapshot")
	}
}

func TestLearningQueueFlow(t *testing.T) {
	m := New(DefaultConfig(), nil)

	id := m.AddToLearningQueue("NOWY PRACODAWCA SA", models.LabelWhitelist, []string{"tx1", "tx2"})
	rejected := m.AddToLearningQueue("PODEJRZANY PODMIOT", models.LabelBlacklist, nil)

	pending := m.PendingLearningItems()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	if err := m.ResolveLearningItem(rejected, false, "", ""); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := m.ResolveLearningItem(id, true, "", "zaakceptowano"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := m.ResolveLearningItem(id, true, "", ""); err == nil {
		t.Error("resolving an already-handled item should fail")
	}

	if len(m.PendingLearningItems()) != 0 {
		t.Error("queue should be empty after review")
	}

	labels := m.GetLabels()
	if labels["nowy pracodawca sa"] != models.LabelWhitelist {
		t.Errorf("accepted item did not label the profile: %v", labels)
	}
	if _, ok := labels["podejrzany podmiot"]; ok {
		t.Error("rejected item must not label anything")
	}
}

func TestLoadSeedsIndex(t *testing.T) {
	m := New(DefaultConfig(), nil)
	m.Load([]models.CounterpartyProfile{
		{ID: "p1", CanonicalName: "ALLEGRO SP Z OO", Label: models.LabelWhitelist, Aliases: []string{"ALLEGRO PL"}},
	})

	res := m.Resolve("allegro pl")
	if res.Created || res.ProfileID != "p1" {
		t.Errorf("alias from loaded profile should resolve to it, got %+v", res)
	}
}
