// Package decision implements the async human-in-the-loop rendezvous.
// Unlike an in-process approval manager keyed by channels, the
// requester and the answerer here are routinely different OS
// processes, so the record file itself is the rendezvous point: Create
// persists it, Answer atomically rewrites it, and Await polls (or is
// woken by a filesystem watch) until it observes a terminal status.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ridgeline-dev/conductor/internal/notify"
	"github.com/ridgeline-dev/conductor/pkg/models"
)

// ErrInvalidAnswer is returned by Answer when the proposed answer is
// not one of the decision's recorded options.
var ErrInvalidAnswer = errors.New("decision: answer not among recorded options")

// ErrNotPending is returned by Answer or Cancel when the record is no
// longer Pending.
var ErrNotPending = errors.New("decision: record is not pending")

// ErrConflictingAnswer is returned when a second, different answer is
// submitted against an already-Answered record.
var ErrConflictingAnswer = errors.New("decision: record already answered differently")

// ErrAwaitTimeout is returned by Await when no default answer is
// configured and the timeout elapses without a response.
var ErrAwaitTimeout = errors.New("decision: await timed out with no default")

const pollInterval = 500 * time.Millisecond

// Queue stores decision records as individual JSON files under dir.
type Queue struct {
	dir  string
	sink notify.Sink
}

// New returns a Queue rooted at dir, creating it if absent.
func New(dir string, sink notify.Sink) (*Queue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("decision: prepare dir: %w", err)
	}
	if sink == nil {
		sink = notify.NoOp{}
	}
	return &Queue{dir: dir, sink: sink}, nil
}

func (q *Queue) pathFor(id string) string {
	return filepath.Join(q.dir, id+".json")
}

// Create persists a new Pending record and emits a decision-needed
// notification carrying its id and options.
func (q *Queue) Create(question string, options []string, context string, timeoutSeconds int, defaultAnswer *string, requestingWorker, requestingFeature string) (string, error) {
	d := &models.Decision{
		ID:                uuid.NewString(),
		Question:          question,
		Options:           options,
		Context:           context,
		DefaultAnswer:     defaultAnswer,
		TimeoutSeconds:    timeoutSeconds,
		RequestingWorker:  requestingWorker,
		RequestingFeature: requestingFeature,
		Status:            models.DecisionPending,
		CreatedAt:         time.Now(),
	}
	if err := q.write(d); err != nil {
		return "", err
	}
	q.sink.Notify(notify.Event{
		Type:       notify.EventDecisionNeeded,
		DecisionID: d.ID,
		FeatureID:  requestingFeature,
		Worker:     requestingWorker,
		Message:    question,
		Timestamp:  time.Now(),
	})
	return d.ID, nil
}

// Answer validates answer against the recorded options and transitions
// a Pending record to Answered. A second distinct answer against an
// already-Answered record is rejected; the identical (id, answer,
// answerer) triple replayed is treated as a no-op success.
func (q *Queue) Answer(id, answer, answerer string) error {
	d, err := q.read(id)
	if err != nil {
		return err
	}

	if d.Status == models.DecisionAnswered {
		if d.Answer != nil && *d.Answer == answer && d.AnsweredBy == answerer {
			return nil
		}
		return ErrConflictingAnswer
	}
	if d.Status != models.DecisionPending {
		return ErrNotPending
	}
	if !d.HasOption(answer) {
		return ErrInvalidAnswer
	}

	now := time.Now()
	d.Status = models.DecisionAnswered
	d.Answer = &answer
	d.AnsweredAt = &now
	d.AnsweredBy = answerer
	return q.write(d)
}

// Cancel moves a Pending record to Cancelled, recording reason as the
// context field's suffix for operator visibility.
func (q *Queue) Cancel(id, reason string) error {
	d, err := q.read(id)
	if err != nil {
		return err
	}
	if d.Status != models.DecisionPending {
		return ErrNotPending
	}
	d.Status = models.DecisionCancelled
	if reason != "" {
		d.Context = d.Context + " | cancelled: " + reason
	}
	return q.write(d)
}

// Await polls until id reaches Answered (returning the answer),
// TimedOut (returning the default, if the record already carries one),
// or the caller-supplied timeout elapses. On timeout with a default
// answer configured, the record is transitioned to TimedOut. A
// fsnotify watch on the queue directory wakes Await the moment Answer
// or Cancel commits a change, instead of waiting out the next poll
// tick; if the watcher cannot be started, Await falls back to plain
// polling.
func (q *Queue) Await(id string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	watchCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var woken <-chan string
	if w, err := NewWatcher(q.dir); err == nil {
		defer w.Close()
		woken = w.Changed(watchCtx)
	}

	for {
		d, err := q.read(id)
		if err != nil {
			return "", err
		}
		switch d.Status {
		case models.DecisionAnswered:
			return *d.Answer, nil
		case models.DecisionCancelled:
			return "", fmt.Errorf("decision: %s was cancelled", id)
		case models.DecisionTimedOut:
			if d.Answer != nil {
				return *d.Answer, nil
			}
			return "", ErrAwaitTimeout
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return q.timeoutOut(d)
		}
		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-woken:
		case <-time.After(wait):
		}
	}
}

func (q *Queue) timeoutOut(d *models.Decision) (string, error) {
	d.Status = models.DecisionTimedOut
	if d.DefaultAnswer != nil {
		d.Answer = d.DefaultAnswer
	}
	if err := q.write(d); err != nil {
		return "", err
	}
	if d.Answer != nil {
		return *d.Answer, nil
	}
	return "", ErrAwaitTimeout
}

// Pending enumerates every record currently in the Pending status, for
// display by the status command and TUI.
func (q *Queue) Pending() ([]*models.Decision, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("decision: list %s: %w", q.dir, err)
	}
	var out []*models.Decision
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		d, err := q.read(trimExt(e.Name()))
		if err != nil {
			continue
		}
		if d.Status == models.DecisionPending {
			out = append(out, d)
		}
	}
	return out, nil
}

// Cleanup removes every record older than maxAge, regardless of
// status. It is invoked from the heartbeat reaper's periodic sweep.
func (q *Queue) Cleanup(maxAge time.Duration) error {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return fmt.Errorf("decision: list %s: %w", q.dir, err)
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		d, err := q.read(trimExt(e.Name()))
		if err != nil {
			continue
		}
		if d.CreatedAt.Before(cutoff) {
			_ = os.Remove(q.pathFor(d.ID))
		}
	}
	return nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

func (q *Queue) read(id string) (*models.Decision, error) {
	data, err := os.ReadFile(q.pathFor(id))
	if err != nil {
		return nil, fmt.Errorf("decision: read %s: %w", id, err)
	}
	var d models.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decision: decode %s: %w", id, err)
	}
	return &d, nil
}

// write commits d via write-temp-then-rename, the same atomic pattern
// used by the state store, so an awaiter polling the file never
// observes a half-written record.
func (q *Queue) write(d *models.Decision) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("decision: encode: %w", err)
	}
	tmp := q.pathFor(d.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("decision: write temp: %w", err)
	}
	if err := os.Rename(tmp, q.pathFor(d.ID)); err != nil {
		return fmt.Errorf("decision: commit: %w", err)
	}
	return nil
}
