package heartbeat

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ridgeline-dev/conductor/internal/budget"
	"github.com/ridgeline-dev/conductor/internal/claim"
	"github.com/ridgeline-dev/conductor/internal/decision"
	"github.com/ridgeline-dev/conductor/internal/state"
	"github.com/ridgeline-dev/conductor/pkg/models"
)

func newTestReaper(t *testing.T, cfg ReaperConfig) (*Reaper, *state.Store, *claim.Manager, string, *decision.Queue) {
	t.Helper()
	root := t.TempDir()
	s, err := state.Open(filepath.Join(root, "state"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	cat := &models.Catalog{Features: []models.Feature{{ID: "a"}}}
	if _, err := s.Mutate(func(d *models.StateDocument) (*models.StateDocument, error) {
		d.InitializeFromCatalog(cat)
		return d, nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cm := claim.New(s, cat, nil)

	beaconDir := filepath.Join(root, "heartbeats")
	ledger, err := budget.Open(filepath.Join(root, "ledger.csv"), budget.DefaultPrices, 0)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	dq, err := decision.New(filepath.Join(root, "decisions"), nil)
	if err != nil {
		t.Fatalf("open decision queue: %v", err)
	}
	r := New(cfg, s, cm, NewRegistry(beaconDir), ledger, dq, nil)
	return r, s, cm, beaconDir, dq
}

func setClaimedAt(t *testing.T, s *state.Store, id string, at time.Time) {
	t.Helper()
	if _, err := s.Mutate(func(d *models.StateDocument) (*models.StateDocument, error) {
		d.Features[id].ClaimedAt = &at
		return d, nil
	}); err != nil {
		t.Fatalf("backdate claim: %v", err)
	}
}

func TestReaperDoesNotReleaseFreshClaim(t *testing.T) {
	r, s, cm, _, _ := newTestReaper(t, ReaperConfig{ClaimFreshness: time.Hour, MaxCIAttempts: 3})
	if err := cm.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	r.sweep()

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.Features["a"].Status != models.StatusInProgress {
		t.Errorf("expected in_progress claim to survive sweep, got %v", doc.Features["a"].Status)
	}
}

func TestReaperKeepsClaimWhenOldButHeartbeatFresh(t *testing.T) {
	r, s, cm, beaconDir, _ := newTestReaper(t, ReaperConfig{ClaimFreshness: time.Millisecond, MaxCIAttempts: 3})
	if err := cm.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	setClaimedAt(t, s, "a", time.Now().Add(-time.Hour))

	b, err := NewBeacon(beaconDir, "w1")
	if err != nil {
		t.Fatalf("new beacon: %v", err)
	}
	if err := b.Touch(); err != nil {
		t.Fatalf("touch: %v", err)
	}

	r.sweep()

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.Features["a"].Status != models.StatusInProgress {
		t.Error("a worker with an old claim but a fresh heartbeat must not be reaped")
	}
}

func TestReaperReleasesStaleClaim(t *testing.T) {
	r, s, cm, _, _ := newTestReaper(t, ReaperConfig{ClaimFreshness: time.Millisecond, MaxCIAttempts: 3})
	if err := cm.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	setClaimedAt(t, s, "a", time.Now().Add(-time.Hour))
	// No beacon is ever touched for w1, so it is stale by construction.

	r.sweep()

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.Features["a"].Status != models.StatusPending {
		t.Errorf("expected stale claim released back to pending, got %v", doc.Features["a"].Status)
	}
}

func TestReaperBlocksFeatureAfterMaxCIAttempts(t *testing.T) {
	r, s, cm, _, _ := newTestReaper(t, ReaperConfig{ClaimFreshness: time.Hour, MaxCIAttempts: 2})
	if err := cm.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := cm.UpdateCI("a", models.CIFailed, true); err != nil {
		t.Fatalf("update ci: %v", err)
	}
	if err := cm.UpdateCI("a", models.CIFailed, true); err != nil {
		t.Fatalf("update ci: %v", err)
	}

	r.sweep()

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.Features["a"].Status != models.StatusBlocked {
		t.Errorf("expected feature blocked after exhausting ci attempts, got %v", doc.Features["a"].Status)
	}
}

func TestReaperSweepPrunesOldDecisionRecords(t *testing.T) {
	r, _, _, _, dq := newTestReaper(t, ReaperConfig{ClaimFreshness: time.Hour, MaxCIAttempts: 3, DecisionMaxAge: time.Millisecond})

	id, err := dq.Create("merge now?", []string{"yes", "no"}, "", 0, nil, "w1", "a")
	if err != nil {
		t.Fatalf("create decision: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	r.sweep()

	if _, err := dq.Pending(); err != nil {
		t.Fatalf("pending: %v", err)
	}
	if _, err := dq.Await(id, time.Millisecond); err == nil {
		t.Fatalf("expected the pruned record to be gone, but it still answered")
	}
}
