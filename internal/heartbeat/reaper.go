package heartbeat

import (
	"context"
	"time"

	"github.com/ridgeline-dev/conductor/internal/budget"
	"github.com/ridgeline-dev/conductor/internal/claim"
	"github.com/ridgeline-dev/conductor/internal/decision"
	"github.com/ridgeline-dev/conductor/internal/logging"
	"github.com/ridgeline-dev/conductor/internal/state"
	"github.com/ridgeline-dev/conductor/pkg/models"
)

// ReaperConfig tunes the wake interval, staleness thresholds, budget
// cool-down, and decision-record retention, mirroring SPEC_FULL.md
// §4.5's defaults.
type ReaperConfig struct {
	WakeInterval   time.Duration // default 60s
	ClaimFreshness time.Duration // default 10m
	MaxCIAttempts  int
	BudgetCoolDown time.Duration // default 5m
	DecisionMaxAge time.Duration // default 7 days
}

// DefaultReaperConfig returns the spec's documented defaults.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		WakeInterval:   60 * time.Second,
		ClaimFreshness: DefaultFreshness,
		MaxCIAttempts:  3,
		BudgetCoolDown: 5 * time.Minute,
		DecisionMaxAge: 7 * 24 * time.Hour,
	}
}

// Reaper runs the periodic recovery loop: it releases claims whose
// owner has gone dark, blocks features that exhausted their CI
// attempts, backs off entirely while over budget, and prunes decision
// records older than DecisionMaxAge.
type Reaper struct {
	cfg       ReaperConfig
	store     *state.Store
	claims    *claim.Manager
	beacons   *Registry
	ledger    *budget.Ledger
	decisions *decision.Queue
	log       *logging.Logger
}

// New builds a Reaper. decisions may be nil, in which case decision
// cleanup is skipped. log may be logging.NoOp().
func New(cfg ReaperConfig, store *state.Store, claims *claim.Manager, beacons *Registry, ledger *budget.Ledger, decisions *decision.Queue, log *logging.Logger) *Reaper {
	if log == nil {
		log = logging.NoOp()
	}
	return &Reaper{cfg: cfg, store: store, claims: claims, beacons: beacons, ledger: ledger, decisions: decisions, log: log}
}

// Run blocks, waking every WakeInterval, until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.WakeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	if r.ledger != nil {
		ok, err := r.ledger.WithinBudget()
		if err != nil {
			r.log.Log("reaper: budget check failed: %v", err)
		} else if !ok {
			r.log.Log("reaper: over budget, cooling down %s", r.cfg.BudgetCoolDown)
			time.Sleep(r.cfg.BudgetCoolDown)
			return
		}
	}

	if r.decisions != nil {
		if err := r.decisions.Cleanup(r.cfg.DecisionMaxAge); err != nil {
			r.log.Log("reaper: decision cleanup failed: %v", err)
		}
	}

	doc, err := r.store.Snapshot()
	if err != nil {
		r.log.Log("reaper: snapshot failed: %v", err)
		return
	}

	for id, s := range doc.Features {
		switch {
		case s.Status == models.StatusInProgress:
			r.maybeReleaseStale(id, s)
		}
		if s.CIStatus == models.CIFailed && s.CIAttempts >= r.cfg.MaxCIAttempts {
			if err := r.claims.Block(id, "CI failed too many times"); err != nil {
				r.log.Log("reaper: block %s failed: %v", id, err)
			} else {
				r.log.Log("reaper: blocked %s after %d failed CI attempts", id, s.CIAttempts)
			}
		}
	}
}

// maybeReleaseStale implements the double condition: the claim must be
// both old AND its owner's heartbeat stale, so a worker that is simply
// busy inside a long builder call is never reaped.
func (r *Reaper) maybeReleaseStale(id string, s *models.FeatureState) {
	if s.ClaimedAt == nil {
		return
	}
	if time.Since(*s.ClaimedAt) <= r.cfg.ClaimFreshness {
		return
	}
	if !r.beacons.IsStale(s.ClaimedBy, r.cfg.ClaimFreshness) {
		return
	}
	if err := r.claims.Release(id, "stale"); err != nil {
		r.log.Log("reaper: release %s failed: %v", id, err)
		return
	}
	r.log.Log("reaper: released stale claim on %s held by %s", id, s.ClaimedBy)
}
