package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/ridgeline-dev/conductor/internal/budget"
	"github.com/ridgeline-dev/conductor/internal/catalog"
	"github.com/ridgeline-dev/conductor/internal/claim"
	"github.com/ridgeline-dev/conductor/internal/decision"
	"github.com/ridgeline-dev/conductor/internal/heartbeat"
	"github.com/ridgeline-dev/conductor/internal/merge"
	"github.com/ridgeline-dev/conductor/internal/state"
	"github.com/ridgeline-dev/conductor/internal/worker"
	"github.com/ridgeline-dev/conductor/pkg/models"
)

// Orchestrator drives one run end to end: prerequisite checks, state
// initialization, spawning the reaper and workers, supervising them
// until the backlog drains, and reporting a final status.
type Orchestrator struct {
	req RequiredConfig
	opt *orchestratorOptions

	cat    *models.Catalog
	store  *state.Store
	claims *claim.Manager
	ledger *budget.Ledger
	reg    *heartbeat.Registry
	decQ   *decision.Queue

	mu      sync.Mutex
	workers map[string]context.CancelFunc
}

// New builds an Orchestrator from required and optional configuration.
// It does not yet touch disk or spawn anything — call Run for that.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, apply := range opts {
		apply(o)
	}
	return &Orchestrator{req: req, opt: o, workers: make(map[string]context.CancelFunc)}
}

// PrerequisiteError reports a fatal precondition failure discovered
// before any state was touched.
type PrerequisiteError struct {
	Reason string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("orchestrator: prerequisite failed: %s", e.Reason)
}

// checkPrerequisites verifies external tool availability, the static
// catalog, and that RepoPath is a git repository, before any state is
// mutated.
func (o *Orchestrator) checkPrerequisites() error {
	if _, err := exec.LookPath("git"); err != nil {
		return &PrerequisiteError{Reason: "git binary not found on PATH"}
	}
	if _, err := os.Stat(o.req.CatalogPath); err != nil {
		return &PrerequisiteError{Reason: fmt.Sprintf("catalog not found at %s", o.req.CatalogPath)}
	}
	if _, err := os.Stat(o.req.RepoPath + "/.git"); err != nil {
		return &PrerequisiteError{Reason: fmt.Sprintf("%s is not a git repository", o.req.RepoPath)}
	}
	return nil
}

// Report summarizes a completed or aborted run for human consumption.
type Report struct {
	Completed []string
	Blocked   []*models.FeatureState
}

// Run executes the full lifecycle. It blocks until the backlog drains
// or ctx is cancelled, then performs cleanup and returns a Report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if err := o.checkPrerequisites(); err != nil {
		return nil, err
	}

	cat, err := catalog.Load(o.req.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.cat = cat

	store, err := state.Open(o.req.StateDir)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.store = store

	if _, err := store.Load(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if _, err := store.Mutate(func(d *models.StateDocument) (*models.StateDocument, error) {
		d.InitializeFromCatalog(cat)
		return d, nil
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: initialize state: %w", err)
	}

	o.claims = claim.New(store, cat, o.opt.sink)

	ledgerPath := o.opt.ledgerPath
	if ledgerPath == "" {
		ledgerPath = o.req.StateDir + "/cost-ledger.csv"
	}
	ledger, err := budget.Open(ledgerPath, o.opt.prices, o.opt.dailyCapUSD)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.ledger = ledger

	beaconDir := o.req.StateDir + "/heartbeats"
	o.reg = heartbeat.NewRegistry(beaconDir)

	decQ, err := decision.New(o.req.StateDir+"/decisions", o.opt.sink)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.decQ = decQ

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reaper := heartbeat.New(
		heartbeat.DefaultReaperConfig(),
		store, o.claims, o.reg, o.ledger, o.decQ, o.opt.logger,
	)
	var reaperWG sync.WaitGroup
	reaperWG.Add(1)
	go func() {
		defer reaperWG.Done()
		reaper.Run(runCtx)
	}()
	defer reaperWG.Wait()

	o.spawnWorkers(runCtx, beaconDir)

	o.superviseUntilDrained(runCtx, beaconDir)

	cancel()
	o.waitForWorkers()

	final, err := o.store.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: final snapshot: %w", err)
	}
	return o.buildReport(final), nil
}

func (o *Orchestrator) spawnWorkers(ctx context.Context, beaconDir string) {
	p := pool.New().WithMaxGoroutines(o.opt.workerCount)

	o.mu.Lock()
	for i := 0; i < o.opt.workerCount; i++ {
		id := fmt.Sprintf("worker-%d", i+1)
		workerCtx, workerCancel := context.WithCancel(ctx)
		o.workers[id] = workerCancel

		delay := time.Duration(i) * o.opt.staggerDelay
		p.Go(func() {
			time.Sleep(delay)
			o.runOneWorker(workerCtx, id, beaconDir)
		})
	}
	o.mu.Unlock()

	go func() {
		p.Wait()
	}()
}

func (o *Orchestrator) runOneWorker(ctx context.Context, id, beaconDir string) {
	beacon, err := heartbeat.NewBeacon(beaconDir, id)
	if err != nil {
		o.opt.logger.Log("orchestrator: beacon for %s failed: %v", id, err)
		return
	}

	cfg := worker.DefaultConfig(id)
	cfg.MaxIterationsPerFeature = o.opt.maxIterationsPerFeature
	cfg.SleepBetweenPolls = o.opt.sleepBetweenPolls
	cfg.DecisionTimeout = o.opt.decisionTimeout

	w := worker.New(cfg, o.claims, beacon, o.ledger, o.opt.build, o.opt.repo, o.decQ, o.opt.sink, o.opt.logger)
	if err := w.Run(ctx); err != nil {
		o.opt.logger.Log("orchestrator: worker %s exited with error: %v", id, err)
	}

	o.mu.Lock()
	delete(o.workers, id)
	o.mu.Unlock()
}

func (o *Orchestrator) livingWorkers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.workers)
}

func (o *Orchestrator) waitForWorkers() {
	for o.livingWorkers() > 0 {
		time.Sleep(100 * time.Millisecond)
	}
}

// superviseUntilDrained polls worker liveness and backlog state,
// restarting the worker pool if it dies with work remaining, and
// returning once pending=0 and in_progress=0.
func (o *Orchestrator) superviseUntilDrained(ctx context.Context, beaconDir string) {
	ticker := time.NewTicker(o.opt.supervisionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		doc, err := o.store.Snapshot()
		if err != nil {
			o.opt.logger.Log("orchestrator: supervision snapshot failed: %v", err)
			continue
		}

		pending, inProgress := countByStatus(doc)
		if pending == 0 && inProgress == 0 {
			o.opt.logger.Log("orchestrator: backlog drained")
			return
		}

		if o.livingWorkers() == 0 {
			o.opt.logger.Log("orchestrator: no living workers with work remaining, restarting pool")
			o.spawnWorkers(ctx, beaconDir)
		}
	}
}

func countByStatus(doc *models.StateDocument) (pending, inProgress int) {
	for _, s := range doc.Features {
		switch s.Status {
		case models.StatusPending:
			pending++
		case models.StatusInProgress:
			inProgress++
		}
	}
	return pending, inProgress
}

func (o *Orchestrator) buildReport(doc *models.StateDocument) *Report {
	r := &Report{}
	for id, s := range doc.Features {
		switch s.Status {
		case models.StatusCompleted:
			r.Completed = append(r.Completed, id)
		case models.StatusBlocked:
			r.Blocked = append(r.Blocked, s)
		}
	}
	return r
}

// MergePlan computes and renders the merge-plan document for the
// current state, run after the implementation phase has drained.
func (o *Orchestrator) MergePlan() (string, error) {
	doc, err := o.store.Snapshot()
	if err != nil {
		return "", err
	}
	order, err := merge.Plan(o.cat, doc)
	if err != nil {
		return "", err
	}
	return merge.RenderDocument(order, doc), nil
}
