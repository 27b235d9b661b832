// Package orchestrator implements the top-level lifecycle: prerequisite
// checks, StateStore initialization, spawning the heartbeat reaper and
// workers, supervising them, and reporting a final status once the
// backlog drains.
package orchestrator

import (
	"time"

	"github.com/ridgeline-dev/conductor/internal/budget"
	"github.com/ridgeline-dev/conductor/internal/builder"
	"github.com/ridgeline-dev/conductor/internal/logging"
	"github.com/ridgeline-dev/conductor/internal/notify"
	"github.com/ridgeline-dev/conductor/internal/vcs"
)

// RequiredConfig is the minimal configuration an Orchestrator cannot
// run without.
type RequiredConfig struct {
	RepoPath    string
	StateDir    string
	CatalogPath string
}

// Option configures optional Orchestrator behavior. Use the With*
// constructors below.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	workerCount             int
	maxIterationsPerFeature int
	sleepBetweenPolls       time.Duration
	supervisionInterval     time.Duration
	staggerDelay            time.Duration
	decisionTimeout         time.Duration
	integrationBranch       string

	dailyCapUSD float64
	prices      budget.PricePerToken
	ledgerPath  string

	build  builder.Builder
	repo   vcs.VCS
	sink   notify.Sink
	logger *logging.Logger
}

func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{
		workerCount:             3,
		maxIterationsPerFeature: 10,
		sleepBetweenPolls:       5 * time.Second,
		supervisionInterval:     30 * time.Second,
		staggerDelay:            2 * time.Second,
		decisionTimeout:         time.Hour,
		integrationBranch:       "main",
		dailyCapUSD:             0,
		prices:                  budget.DefaultPrices,
		build:                   builder.Null{},
		repo:                    vcs.Null{},
		sink:                    notify.NoOp{},
		logger:                  logging.NoOp(),
	}
}

// WithWorkerCount sets N, the number of workers spawned at startup.
func WithWorkerCount(n int) Option {
	return func(o *orchestratorOptions) { o.workerCount = n }
}

// WithMaxIterationsPerFeature bounds each worker's per-feature loop.
func WithMaxIterationsPerFeature(n int) Option {
	return func(o *orchestratorOptions) { o.maxIterationsPerFeature = n }
}

// WithSleepBetweenPolls sets the idle backoff between claim attempts.
func WithSleepBetweenPolls(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.sleepBetweenPolls = d }
}

// WithSupervisionInterval sets how often the supervision loop checks
// on worker liveness and backlog drain.
func WithSupervisionInterval(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.supervisionInterval = d }
}

// WithStaggerDelay sets the spacing between spawning successive
// workers at startup, avoiding a thundering herd on the first claim.
func WithStaggerDelay(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.staggerDelay = d }
}

// WithDecisionTimeout sets how long a worker will wait on an async
// human decision before giving up and blocking the feature.
func WithDecisionTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.decisionTimeout = d }
}

// WithIntegrationBranch records the integration branch in the options.
// Run does not pass it on to any collaborator; the Git VCS takes its
// integration branch from its own constructor.
func WithIntegrationBranch(branch string) Option {
	return func(o *orchestratorOptions) { o.integrationBranch = branch }
}

// WithDailyCap sets the daily spend cap in USD the budget ledger
// enforces; a non-positive value means unlimited.
func WithDailyCap(usd float64) Option {
	return func(o *orchestratorOptions) { o.dailyCapUSD = usd }
}

// WithPrices overrides the per-token price table the ledger uses to
// cost each builder call.
func WithPrices(p budget.PricePerToken) Option {
	return func(o *orchestratorOptions) { o.prices = p }
}

// WithLedgerPath overrides where the cost ledger is written. Empty
// keeps the default of StateDir/cost-ledger.csv.
func WithLedgerPath(path string) Option {
	return func(o *orchestratorOptions) { o.ledgerPath = path }
}

// WithBuilder sets the external builder collaborator.
func WithBuilder(b builder.Builder) Option {
	return func(o *orchestratorOptions) { o.build = b }
}

// WithVCS sets the version-control collaborator.
func WithVCS(v vcs.VCS) Option {
	return func(o *orchestratorOptions) { o.repo = v }
}

// WithNotifier sets the notification sink.
func WithNotifier(s notify.Sink) Option {
	return func(o *orchestratorOptions) { o.sink = s }
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}
