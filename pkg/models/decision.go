package models

import "time"

// DecisionStatus is the lifecycle state of a Decision record.
type DecisionStatus string

const (
	DecisionPending   DecisionStatus = "pending"
	DecisionAnswered  DecisionStatus = "answered"
	DecisionTimedOut  DecisionStatus = "timed_out"
	DecisionCancelled DecisionStatus = "cancelled"
)

// Decision is a persistent record of a question raised by a worker and
// answered by an external actor (a human, via Linear/Slack/filesystem).
type Decision struct {
	ID      string   `json:"decision_id"`
	Question string  `json:"question"`
	Options []string `json:"options"`
	Context string   `json:"context,omitempty"`

	// DefaultAnswer is applied on timeout if present.
	DefaultAnswer *string `json:"default_answer,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds"`

	RequestingWorker  string `json:"requesting_worker"`
	RequestingFeature string `json:"requesting_feature"`

	Status DecisionStatus `json:"status"`
	Answer *string        `json:"answer,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	AnsweredBy string     `json:"answered_by,omitempty"`
}

// HasOption reports whether candidate is one of the recorded options.
func (d *Decision) HasOption(candidate string) bool {
	for _, opt := range d.Options {
		if opt == candidate {
			return true
		}
	}
	return false
}

// Clone deep-copies the decision record.
func (d *Decision) Clone() *Decision {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Options = append([]string(nil), d.Options...)
	if d.DefaultAnswer != nil {
		v := *d.DefaultAnswer
		clone.DefaultAnswer = &v
	}
	if d.Answer != nil {
		v := *d.Answer
		clone.Answer = &v
	}
	if d.AnsweredAt != nil {
		t := *d.AnsweredAt
		clone.AnsweredAt = &t
	}
	return &clone
}
