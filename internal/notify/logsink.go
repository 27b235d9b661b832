package notify

import (
	"github.com/ridgeline-dev/conductor/internal/logging"
)

// LogSink writes every event as a single line to a Logger. It is the
// default sink when no richer notifier (Slack, Linear) is configured.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink wraps an already-open Logger as a Sink.
func NewLogSink(log *logging.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(e Event) {
	switch e.Type {
	case EventCost:
		s.log.Log("[cost] worker=%s feature=%s tokens_in=%d tokens_out=%d cost=%.4f",
			e.Worker, e.FeatureID, e.TokensIn, e.TokensOut, e.Cost)
	case EventDecisionNeeded:
		s.log.Log("[decision_needed] decision=%s worker=%s feature=%s %s",
			e.DecisionID, e.Worker, e.FeatureID, e.Message)
	default:
		s.log.Log("[%s] feature=%s worker=%s %s", e.Type, e.FeatureID, e.Worker, e.Message)
	}
}
