package claim

import (
	"errors"
	"sync"
	"testing"

	"github.com/ridgeline-dev/conductor/internal/state"
	"github.com/ridgeline-dev/conductor/pkg/models"
)

func testCatalog() *models.Catalog {
	return &models.Catalog{
		Features: []models.Feature{
			{ID: "a", Priority: 1},
			{ID: "b", Priority: 1, DependsOn: []string{"a"}},
			{ID: "c", Priority: 2, DependsOn: []string{"a"}},
		},
	}
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	s, err := state.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	cat := testCatalog()
	if _, err := s.Mutate(func(d *models.StateDocument) (*models.StateDocument, error) {
		d.InitializeFromCatalog(cat)
		return d, nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return New(s, cat, nil)
}

func TestClaimableIDsRespectsDependencyGating(t *testing.T) {
	m := newManager(t)

	ids, err := m.ClaimableIDs()
	if err != nil {
		t.Fatalf("claimable ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("expected only 'a' claimable until its dependents unlock, got %v", ids)
	}

	if err := m.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("claim a: %v", err)
	}
	if err := m.Complete("a", ""); err != nil {
		t.Fatalf("complete a: %v", err)
	}

	ids, err = m.ClaimableIDs()
	if err != nil {
		t.Fatalf("claimable ids after completing a: %v", err)
	}
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "c" {
		t.Fatalf("expected b and c claimable in priority order once a completes, got %v", ids)
	}
}

func TestClaimRejectsAlreadyClaimed(t *testing.T) {
	m := newManager(t)
	if err := m.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := m.Claim("a", "w2", "conductor/a"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on double claim, got %v", err)
	}
}

func TestClaimUnknownIDReturnsNotFound(t *testing.T) {
	m := newManager(t)
	if err := m.Claim("missing", "w1", "conductor/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimNextReturnsErrEmptyWhenNothingClaimable(t *testing.T) {
	m := newManager(t)
	if err := m.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("claim a: %v", err)
	}
	if _, err := m.ClaimNext("w2", "conductor/x"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty while a is claimed and b/c are blocked on it, got %v", err)
	}
}

// TestClaimNextConcurrentCallersNeverDoubleClaim exercises the race the
// atomic claim protocol exists to prevent: many workers racing ClaimNext
// must partition the claimable set with no two workers getting the same
// feature id.
func TestClaimNextConcurrentCallersNeverDoubleClaim(t *testing.T) {
	s, err := state.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	cat := &models.Catalog{Features: []models.Feature{
		{ID: "f1", Priority: 1},
		{ID: "f2", Priority: 1},
		{ID: "f3", Priority: 1},
	}}
	if _, err := s.Mutate(func(d *models.StateDocument) (*models.StateDocument, error) {
		d.InitializeFromCatalog(cat)
		return d, nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := New(s, cat, nil)

	const workers = 8
	var wg sync.WaitGroup
	claimed := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id, err := m.ClaimNext("w", "branch")
			if err == nil {
				claimed <- id
			}
		}(i)
	}
	wg.Wait()
	close(claimed)

	seen := map[string]int{}
	for id := range claimed {
		seen[id]++
	}
	for id, count := range seen {
		if count > 1 {
			t.Errorf("feature %q was claimed %d times concurrently", id, count)
		}
	}
	if len(seen) != 3 {
		t.Errorf("expected all 3 features claimed exactly once across workers, got %v", seen)
	}
}

func TestBacklogCountsReflectsGatedDependentsNotJustClaimable(t *testing.T) {
	m := newManager(t)
	if err := m.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("claim a: %v", err)
	}

	// b and c are gated on a and not yet claimable, but the backlog is
	// not drained: a is in progress and b/c are still pending.
	ids, err := m.ClaimableIDs()
	if err != nil {
		t.Fatalf("claimable ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected nothing claimable while a is in progress, got %v", ids)
	}

	pending, inProgress, err := m.BacklogCounts()
	if err != nil {
		t.Fatalf("backlog counts: %v", err)
	}
	if pending != 2 || inProgress != 1 {
		t.Fatalf("expected 2 pending and 1 in_progress, got pending=%d in_progress=%d", pending, inProgress)
	}
}

func TestCompleteClearsClaimAndAllowsDependents(t *testing.T) {
	m := newManager(t)
	if err := m.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := m.Complete("a", "https://example.com/pr/1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	doc, err := m.store.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	s := doc.Features["a"]
	if s.Status != models.StatusCompleted || s.ClaimedBy != "" {
		t.Fatalf("expected completed with no owner, got status=%v owner=%q", s.Status, s.ClaimedBy)
	}
	if s.PRURL != "https://example.com/pr/1" {
		t.Errorf("expected pr url to be recorded, got %q", s.PRURL)
	}
}

func TestBlockPersistsReasonAndClearsClaim(t *testing.T) {
	m := newManager(t)
	if err := m.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := m.Block("a", "stuck after 3 iterations"); err != nil {
		t.Fatalf("block: %v", err)
	}

	doc, err := m.store.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	s := doc.Features["a"]
	if s.Status != models.StatusBlocked || s.BlockedReason == "" || s.ClaimedBy != "" {
		t.Fatalf("expected blocked with reason and no owner, got %+v", s)
	}
}

func TestReleaseReturnsToPending(t *testing.T) {
	m := newManager(t)
	if err := m.Claim("a", "w1", "conductor/a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := m.Release("a", "worker crashed"); err != nil {
		t.Fatalf("release: %v", err)
	}

	doc, err := m.store.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	s := doc.Features["a"]
	if s.Status != models.StatusPending || s.ClaimedBy != "" {
		t.Fatalf("expected released feature back to pending with no owner, got %+v", s)
	}
}

func TestUpdateCIIncrementsOnlyWhenRequested(t *testing.T) {
	m := newManager(t)
	if err := m.UpdateCI("a", models.CIPending, true); err != nil {
		t.Fatalf("update ci: %v", err)
	}
	if err := m.UpdateCI("a", models.CIPending, false); err != nil {
		t.Fatalf("update ci poll: %v", err)
	}

	doc, err := m.store.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.Features["a"].CIAttempts != 1 {
		t.Errorf("expected 1 ci attempt, got %d", doc.Features["a"].CIAttempts)
	}
}
