// Package worker implements the per-process main loop that claims
// features, drives the external builder, and reports outcomes back
// through the claim protocol.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ridgeline-dev/conductor/internal/budget"
	"github.com/ridgeline-dev/conductor/internal/builder"
	"github.com/ridgeline-dev/conductor/internal/claim"
	"github.com/ridgeline-dev/conductor/internal/decision"
	"github.com/ridgeline-dev/conductor/internal/heartbeat"
	"github.com/ridgeline-dev/conductor/internal/logging"
	"github.com/ridgeline-dev/conductor/internal/notify"
	"github.com/ridgeline-dev/conductor/internal/vcs"
)

// decisionPrefix is the BLOCKED reason prefix a builder uses to route a
// blocker through the human decision rendezvous rather than leaving
// the feature simply Blocked. Format:
// "NEEDS_DECISION:<question>|opt1,opt2,..."
const decisionPrefix = "NEEDS_DECISION:"

// Config tunes one worker's behavior.
type Config struct {
	ID                      string
	MaxIterationsPerFeature int           // default 10
	SleepBetweenPolls       time.Duration // default 5s
	BudgetCoolDown          time.Duration // default 5m
	DecisionTimeout         time.Duration // default 1h
	PromptBuilder           func(featureID string, extraContext string) string
}

// DefaultConfig returns spec-documented defaults for a worker named id.
func DefaultConfig(id string) Config {
	return Config{
		ID:                      id,
		MaxIterationsPerFeature: 10,
		SleepBetweenPolls:       5 * time.Second,
		BudgetCoolDown:          5 * time.Minute,
		DecisionTimeout:         1 * time.Hour,
		PromptBuilder: func(featureID, extraContext string) string {
			if extraContext == "" {
				return fmt.Sprintf("Implement feature %s.", featureID)
			}
			return fmt.Sprintf("Implement feature %s.\n\n%s", featureID, extraContext)
		},
	}
}

// Worker drives one claim-build-report cycle at a time.
type Worker struct {
	cfg       Config
	claims    *claim.Manager
	beacon    *heartbeat.Beacon
	ledger    *budget.Ledger
	build     builder.Builder
	repo      vcs.VCS
	decisions *decision.Queue
	sink      notify.Sink
	log       *logging.Logger
}

// New assembles a Worker from its collaborators.
func New(cfg Config, claims *claim.Manager, beacon *heartbeat.Beacon, ledger *budget.Ledger, build builder.Builder, repo vcs.VCS, decisions *decision.Queue, sink notify.Sink, log *logging.Logger) *Worker {
	if sink == nil {
		sink = notify.NoOp{}
	}
	if log == nil {
		log = logging.NoOp()
	}
	return &Worker{cfg: cfg, claims: claims, beacon: beacon, ledger: ledger, build: build, repo: repo, decisions: decisions, sink: sink, log: log}
}

// Run loops until ctx is cancelled or the backlog drains (no pending
// and no in-progress feature remain).
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		w.beacon.Touch()

		within, err := w.withinBudget()
		if err != nil {
			w.log.Log("worker %s: budget check failed: %v", w.cfg.ID, err)
		}
		if !within {
			w.log.Log("worker %s: over budget, cooling down", w.cfg.ID)
			if !sleepCtx(ctx, w.cfg.BudgetCoolDown) {
				return nil
			}
			continue
		}

		id, err := w.claims.ClaimNext(w.cfg.ID, w.branchFor(w.cfg.ID))
		if errors.Is(err, claim.ErrEmpty) {
			done, derr := w.backlogDrained()
			if derr != nil {
				w.log.Log("worker %s: drain check failed: %v", w.cfg.ID, derr)
			} else if done {
				w.log.Log("worker %s: backlog drained, exiting", w.cfg.ID)
				return nil
			}
			if !sleepCtx(ctx, w.cfg.SleepBetweenPolls) {
				return nil
			}
			continue
		}
		if err != nil {
			w.log.Log("worker %s: claim_next failed: %v", w.cfg.ID, err)
			if !sleepCtx(ctx, w.cfg.SleepBetweenPolls) {
				return nil
			}
			continue
		}

		w.sink.Notify(notify.Event{Type: notify.EventStarted, FeatureID: id, Worker: w.cfg.ID, Timestamp: time.Now()})

		branch := w.branchFor(id)
		if err := w.repo.EnsureBranch(ctx, branch); err != nil {
			w.log.Log("worker %s: branch prep for %s failed: %v", w.cfg.ID, id, err)
			_ = w.claims.Release(id, "branch preparation failed")
			continue
		}

		w.runFeatureLoop(ctx, id)
	}
}

func (w *Worker) branchFor(id string) string {
	return "conductor/" + id
}

func (w *Worker) withinBudget() (bool, error) {
	if w.ledger == nil {
		return true, nil
	}
	return w.ledger.WithinBudget()
}

// backlogDrained reports whether the entire catalog has settled
// (nothing Pending, nothing InProgress). A worker that relied on
// ClaimableIDs alone would exit the moment every remaining feature was
// gated on an in-progress claim rather than finished for good,
// shrinking the effective pool on every dependency wave.
func (w *Worker) backlogDrained() (bool, error) {
	pending, inProgress, err := w.claims.BacklogCounts()
	if err != nil {
		return false, err
	}
	return pending == 0 && inProgress == 0, nil
}

// runFeatureLoop drives the builder for one feature, up to
// MaxIterationsPerFeature times, parsing markers after each call.
func (w *Worker) runFeatureLoop(ctx context.Context, id string) {
	extraContext := ""

	for iter := 0; iter < w.cfg.MaxIterationsPerFeature; iter++ {
		w.beacon.Touch()
		within, err := w.withinBudget()
		if err != nil {
			w.log.Log("worker %s: budget check failed mid-feature: %v", w.cfg.ID, err)
		}
		if !within {
			if !sleepCtx(ctx, w.cfg.BudgetCoolDown) {
				return
			}
			continue
		}

		prompt := w.cfg.PromptBuilder(id, extraContext)
		output, tokensIn, tokensOut, err := w.build.Build(ctx, prompt)
		if err != nil {
			w.log.Log("worker %s: builder call failed for %s: %v", w.cfg.ID, id, err)
			if !sleepCtx(ctx, w.cfg.SleepBetweenPolls) {
				return
			}
			continue
		}

		if w.ledger != nil {
			if err := w.ledger.Record(w.cfg.ID, id, tokensIn, tokensOut); err != nil {
				w.log.Log("worker %s: cost record failed: %v", w.cfg.ID, err)
			}
			w.sink.Notify(notify.Event{Type: notify.EventCost, FeatureID: id, Worker: w.cfg.ID, TokensIn: tokensIn, TokensOut: tokensOut, Timestamp: time.Now()})
		}

		outcome := builder.ParseOutcome(output)
		switch outcome.Kind {
		case builder.OutcomeFeatureComplete:
			prURL, _ := w.repo.PRURLForCurrentBranch(ctx)
			if err := w.claims.Complete(id, prURL); err != nil {
				w.log.Log("worker %s: complete(%s) failed: %v", w.cfg.ID, id, err)
			}
			return

		case builder.OutcomeBlocked:
			if resumed := w.handleBlocked(ctx, id, outcome.Reason, &extraContext); resumed {
				continue
			}
			return

		case builder.OutcomeStuck:
			_ = w.claims.Block(id, fmt.Sprintf("Stuck after %d iterations", iter+1))
			return

		case builder.OutcomeNone:
			if !sleepCtx(ctx, w.cfg.SleepBetweenPolls) {
				return
			}
		}
	}

	_ = w.claims.Block(id, "Max iterations reached")
}

// handleBlocked routes a BLOCKED marker through the decision rendezvous
// when its reason carries the decision-pattern prefix, feeding the
// human answer back into the prompt and resuming the feature loop.
// Otherwise it simply blocks the feature and returns false.
func (w *Worker) handleBlocked(ctx context.Context, id, reason string, extraContext *string) bool {
	if !strings.HasPrefix(reason, decisionPrefix) || w.decisions == nil {
		_ = w.claims.Block(id, reason)
		return false
	}

	body := strings.TrimPrefix(reason, decisionPrefix)
	question, options := splitQuestion(body)

	decisionID, err := w.decisions.Create(question, options, "", int(w.cfg.DecisionTimeout.Seconds()), nil, w.cfg.ID, id)
	if err != nil {
		w.log.Log("worker %s: decision create failed for %s: %v", w.cfg.ID, id, err)
		_ = w.claims.Block(id, reason)
		return false
	}

	answer, err := w.decisions.Await(decisionID, w.cfg.DecisionTimeout)
	if err != nil {
		w.log.Log("worker %s: decision %s unresolved: %v", w.cfg.ID, decisionID, err)
		_ = w.claims.Block(id, reason)
		return false
	}

	*extraContext = fmt.Sprintf("Human answered %q to: %s", answer, question)
	return true
}

func splitQuestion(body string) (question string, options []string) {
	parts := strings.SplitN(body, "|", 2)
	question = parts[0]
	if len(parts) == 2 {
		for _, opt := range strings.Split(parts[1], ",") {
			opt = strings.TrimSpace(opt)
			if opt != "" {
				options = append(options, opt)
			}
		}
	}
	return question, options
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
