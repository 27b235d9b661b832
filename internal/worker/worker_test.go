package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ridgeline-dev/conductor/internal/budget"
	"github.com/ridgeline-dev/conductor/internal/builder"
	"github.com/ridgeline-dev/conductor/internal/claim"
	"github.com/ridgeline-dev/conductor/internal/decision"
	"github.com/ridgeline-dev/conductor/internal/heartbeat"
	"github.com/ridgeline-dev/conductor/internal/state"
	"github.com/ridgeline-dev/conductor/internal/vcs"
	"github.com/ridgeline-dev/conductor/pkg/models"
)

// scriptedBuilder returns one canned response per call, in order, and
// repeats the final one once exhausted.
type scriptedBuilder struct {
	responses []string
	calls     int
}

func (b *scriptedBuilder) Build(ctx context.Context, prompt string) (string, int64, int64, error) {
	i := b.calls
	if i >= len(b.responses) {
		i = len(b.responses) - 1
	}
	b.calls++
	return b.responses[i], 10, 10, nil
}

func newTestRig(t *testing.T, cat *models.Catalog) (*claim.Manager, *state.Store, *heartbeat.Beacon, *budget.Ledger, *decision.Queue) {
	t.Helper()
	root := t.TempDir()
	s, err := state.Open(filepath.Join(root, "state"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := s.Mutate(func(d *models.StateDocument) (*models.StateDocument, error) {
		d.InitializeFromCatalog(cat)
		return d, nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cm := claim.New(s, cat, nil)

	beacon, err := heartbeat.NewBeacon(filepath.Join(root, "heartbeats"), "w1")
	if err != nil {
		t.Fatalf("new beacon: %v", err)
	}
	ledger, err := budget.Open(filepath.Join(root, "ledger.csv"), budget.DefaultPrices, 0)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	dq, err := decision.New(filepath.Join(root, "decisions"), nil)
	if err != nil {
		t.Fatalf("open decision queue: %v", err)
	}
	return cm, s, beacon, ledger, dq
}

func TestWorkerCompletesFeatureAndDrainsBacklog(t *testing.T) {
	cat := &models.Catalog{Features: []models.Feature{{ID: "f1"}}}
	cm, s, beacon, ledger, dq := newTestRig(t, cat)

	cfg := DefaultConfig("w1")
	cfg.SleepBetweenPolls = time.Millisecond
	w := New(cfg, cm, beacon, ledger, builder.Null{FeatureID: "f1"}, vcs.Null{}, dq, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.Features["f1"].Status != models.StatusCompleted {
		t.Fatalf("expected f1 completed, got %v", doc.Features["f1"].Status)
	}
}

func TestWorkerBlocksOnStuckMarker(t *testing.T) {
	cat := &models.Catalog{Features: []models.Feature{{ID: "f1"}}}
	cm, s, beacon, ledger, dq := newTestRig(t, cat)

	cfg := DefaultConfig("w1")
	cfg.SleepBetweenPolls = time.Millisecond
	b := &scriptedBuilder{responses: []string{"<promise>STUCK:f1</promise>"}}
	w := New(cfg, cm, beacon, ledger, b, vcs.Null{}, dq, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.Features["f1"].Status != models.StatusBlocked {
		t.Fatalf("expected f1 blocked, got %v", doc.Features["f1"].Status)
	}
}

func TestWorkerRoutesNeedsDecisionThroughDecisionQueueAndResumes(t *testing.T) {
	cat := &models.Catalog{Features: []models.Feature{{ID: "f1"}}}
	cm, s, beacon, ledger, dq := newTestRig(t, cat)

	cfg := DefaultConfig("w1")
	cfg.SleepBetweenPolls = time.Millisecond
	cfg.DecisionTimeout = 5 * time.Second

	b := &scriptedBuilder{responses: []string{
		"<promise>BLOCKED:f1:NEEDS_DECISION:merge now or wait?|merge,wait</promise>",
		"<promise>FEATURE_COMPLETE:f1</promise>",
	}}
	w := New(cfg, cm, beacon, ledger, b, vcs.Null{}, dq, nil, nil)

	done := make(chan error, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() { done <- w.Run(ctx) }()

	// Wait for the decision record to appear, then answer it as a human would.
	deadline := time.Now().Add(5 * time.Second)
	var id string
	for time.Now().Before(deadline) {
		pending, err := dq.Pending()
		if err == nil && len(pending) == 1 {
			id = pending[0].ID
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if id == "" {
		t.Fatal("expected a pending decision to appear")
	}
	if err := dq.Answer(id, "merge", "alice"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	doc, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if doc.Features["f1"].Status != models.StatusCompleted {
		t.Fatalf("expected f1 completed after decision answered, got %v", doc.Features["f1"].Status)
	}
}
