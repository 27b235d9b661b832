// Package claim implements the claim protocol: the only path by which a
// feature's status is allowed to change. Every operation here is a
// state.Store.Mutate closure, so the whole module inherits the store's
// serialization and atomic-commit guarantees.
package claim

import (
	"sort"
	"time"

	"github.com/ridgeline-dev/conductor/internal/notify"
	"github.com/ridgeline-dev/conductor/internal/state"
	"github.com/ridgeline-dev/conductor/pkg/models"
)

// Manager mediates every status transition for every feature.
type Manager struct {
	store      *state.Store
	catalog    *models.Catalog
	sink       notify.Sink
	validators []state.Validator
}

// New builds a Manager over store, validating against the given
// catalog's invariants and emitting notifications to sink. A nil sink
// is replaced with notify.NoOp.
func New(store *state.Store, catalog *models.Catalog, sink notify.Sink) *Manager {
	if sink == nil {
		sink = notify.NoOp{}
	}
	ids := make(map[string]struct{}, len(catalog.Features))
	for _, f := range catalog.Features {
		ids[f.ID] = struct{}{}
	}
	return &Manager{
		store:      store,
		catalog:    catalog,
		sink:       sink,
		validators: state.Invariants(ids),
	}
}

func (m *Manager) dependsOn(id string) []string {
	for _, f := range m.catalog.Features {
		if f.ID == id {
			return f.DependsOn
		}
	}
	return nil
}

func (m *Manager) priority(id string) int {
	for _, f := range m.catalog.Features {
		if f.ID == id {
			return f.Priority
		}
	}
	return 0
}

// depsCompleted reports whether every dependency of id is Completed in
// doc. A feature with no dependencies trivially satisfies this.
func depsCompleted(doc *models.StateDocument, deps []string) bool {
	for _, dep := range deps {
		s, ok := doc.Features[dep]
		if !ok || s.Status != models.StatusCompleted {
			return false
		}
	}
	return true
}

// ClaimableIDs returns every feature id whose status is Pending and
// whose dependencies are all Completed, sorted by (priority, id) so
// callers see the same tie-break order claim_next uses.
func (m *Manager) ClaimableIDs() ([]string, error) {
	doc, err := m.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return m.claimableFrom(doc), nil
}

func (m *Manager) claimableFrom(doc *models.StateDocument) []string {
	var ids []string
	for _, f := range m.catalog.Features {
		s, ok := doc.Features[f.ID]
		if !ok || s.Status != models.StatusPending {
			continue
		}
		if !depsCompleted(doc, f.DependsOn) {
			continue
		}
		ids = append(ids, f.ID)
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := m.priority(ids[i]), m.priority(ids[j])
		if pi != pj {
			return pi < pj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// BacklogCounts reports how many features are Pending and how many are
// InProgress across the whole catalog. A worker compares this against
// zero/zero to decide whether the backlog has truly drained, rather
// than relying on ClaimableIDs, which can be empty while dependents are
// merely gated on an in-progress claim rather than finished for good.
func (m *Manager) BacklogCounts() (pending, inProgress int, err error) {
	doc, err := m.store.Snapshot()
	if err != nil {
		return 0, 0, err
	}
	for _, s := range doc.Features {
		switch s.Status {
		case models.StatusPending:
			pending++
		case models.StatusInProgress:
			inProgress++
		}
	}
	return pending, inProgress, nil
}

// Claim transitions id from Pending to InProgress on behalf of worker.
// Returns ErrUnavailable if the preconditions no longer hold at commit
// time — e.g. another worker claimed it first.
func (m *Manager) Claim(id, worker, branch string) error {
	_, err := m.store.Mutate(func(doc *models.StateDocument) (*models.StateDocument, error) {
		s, ok := doc.Features[id]
		if !ok {
			return nil, ErrNotFound
		}
		if s.Status != models.StatusPending || !depsCompleted(doc, m.dependsOn(id)) {
			return nil, ErrUnavailable
		}
		now := time.Now()
		s.Status = models.StatusInProgress
		s.ClaimedBy = worker
		s.ClaimedAt = &now
		s.Branch = branch
		return doc, nil
	}, m.validators...)
	if err != nil {
		return err
	}
	m.sink.Notify(notify.Event{Type: notify.EventClaimed, FeatureID: id, Worker: worker, Timestamp: time.Now()})
	return nil
}

// ClaimNext picks the lowest-(priority,id) claimable feature and claims
// it for worker. Returns ErrEmpty if nothing is claimable.
//
// Tie-break rule: stable ascending by priority, then by id. Running the
// selection and the claim inside the same Mutate keeps two concurrent
// callers from ever computing the same "next" id against a state that
// has since changed underneath them — the second caller's mutate
// closure re-reads the freshly committed document.
func (m *Manager) ClaimNext(worker, branch string) (string, error) {
	var chosen string
	_, err := m.store.Mutate(func(doc *models.StateDocument) (*models.StateDocument, error) {
		ids := m.claimableFrom(doc)
		if len(ids) == 0 {
			return nil, ErrEmpty
		}
		chosen = ids[0]
		now := time.Now()
		s := doc.Features[chosen]
		s.Status = models.StatusInProgress
		s.ClaimedBy = worker
		s.ClaimedAt = &now
		s.Branch = branch
		return doc, nil
	}, m.validators...)
	if err != nil {
		return "", err
	}
	m.sink.Notify(notify.Event{Type: notify.EventClaimed, FeatureID: chosen, Worker: worker, Timestamp: time.Now()})
	return chosen, nil
}

// Release returns id to Pending, clearing claim fields. reason is
// logged on the notification but not persisted on the record itself —
// only Block persists a durable reason.
func (m *Manager) Release(id, reason string) error {
	var worker string
	_, err := m.store.Mutate(func(doc *models.StateDocument) (*models.StateDocument, error) {
		s, ok := doc.Features[id]
		if !ok {
			return nil, ErrNotFound
		}
		if s.Status != models.StatusInProgress {
			return nil, ErrIllegalTransition
		}
		worker = s.ClaimedBy
		s.Status = models.StatusPending
		s.ClaimedBy = ""
		s.ClaimedAt = nil
		s.Branch = ""
		return doc, nil
	}, m.validators...)
	if err != nil {
		return err
	}
	m.sink.Notify(notify.Event{Type: notify.EventReleased, FeatureID: id, Worker: worker, Message: reason, Timestamp: time.Now()})
	return nil
}

// Complete transitions id from InProgress to Completed. prURL may be
// empty when the workflow produced no pull request.
func (m *Manager) Complete(id, prURL string) error {
	var worker string
	_, err := m.store.Mutate(func(doc *models.StateDocument) (*models.StateDocument, error) {
		s, ok := doc.Features[id]
		if !ok {
			return nil, ErrNotFound
		}
		if s.Status != models.StatusInProgress {
			return nil, ErrIllegalTransition
		}
		worker = s.ClaimedBy
		now := time.Now()
		s.Status = models.StatusCompleted
		s.CompletedAt = &now
		s.ClaimedBy = ""
		if prURL != "" {
			s.PRURL = prURL
		}
		return doc, nil
	}, m.validators...)
	if err != nil {
		return err
	}
	m.sink.Notify(notify.Event{Type: notify.EventCompleted, FeatureID: id, Worker: worker, Timestamp: time.Now()})
	return nil
}

// Block moves id to Blocked from either Pending or InProgress, clearing
// any claim. reason is persisted on the record.
func (m *Manager) Block(id, reason string) error {
	var worker string
	_, err := m.store.Mutate(func(doc *models.StateDocument) (*models.StateDocument, error) {
		s, ok := doc.Features[id]
		if !ok {
			return nil, ErrNotFound
		}
		if s.Status != models.StatusPending && s.Status != models.StatusInProgress {
			return nil, ErrIllegalTransition
		}
		worker = s.ClaimedBy
		s.Status = models.StatusBlocked
		s.BlockedReason = reason
		s.ClaimedBy = ""
		s.ClaimedAt = nil
		return doc, nil
	}, m.validators...)
	if err != nil {
		return err
	}
	m.sink.Notify(notify.Event{Type: notify.EventBlocked, FeatureID: id, Worker: worker, Message: reason, Timestamp: time.Now()})
	return nil
}

// UpdateCI records the most recently observed CI outcome for id. When
// increment is true, ci_attempts is incremented — callers set this on
// a fresh CI run, not on a status poll of the same run.
func (m *Manager) UpdateCI(id string, status models.CIStatus, increment bool) error {
	_, err := m.store.Mutate(func(doc *models.StateDocument) (*models.StateDocument, error) {
		s, ok := doc.Features[id]
		if !ok {
			return nil, ErrNotFound
		}
		s.CIStatus = status
		if increment {
			s.CIAttempts++
		}
		return doc, nil
	}, m.validators...)
	return err
}
