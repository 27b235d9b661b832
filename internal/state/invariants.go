package state

import (
	"fmt"

	"github.com/ridgeline-dev/conductor/pkg/models"
)

// Invariants returns the standard validator set checked before every
// commit: every feature with state is in the catalog, in_progress
// features name their owner and claim time, completed features hold no
// claim, blocked features carry a reason, CI attempts are non-negative,
// and no completion precedes its claim. catalogIDs is the full set of known feature ids; it is used to catch
// references to ids that don't exist in the catalog.
func Invariants(catalogIDs map[string]struct{}) []Validator {
	return []Validator{
		validKnownIDs(catalogIDs),
		validClaimedHasOwner,
		validCompletedHasNoClaim,
		validBlockedHasReason,
		validCIAttemptsNonNegative,
		validTimestampOrdering,
	}
}

func validKnownIDs(catalogIDs map[string]struct{}) Validator {
	return func(doc *models.StateDocument) error {
		for id := range doc.Features {
			if _, ok := catalogIDs[id]; !ok {
				return fmt.Errorf("feature %q has state but is not in the catalog", id)
			}
		}
		return nil
	}
}

// validClaimedHasOwner: a feature in_progress must record the worker
// that claimed it and the time it was claimed.
func validClaimedHasOwner(doc *models.StateDocument) error {
	for id, s := range doc.Features {
		if s.Status == models.StatusInProgress && (s.ClaimedBy == "" || s.ClaimedAt == nil) {
			return fmt.Errorf("feature %q is in_progress without claimed_by/claimed_at", id)
		}
	}
	return nil
}

// validCompletedHasNoClaim: a completed feature no longer holds a claim
// — ownership is released the instant work finishes.
func validCompletedHasNoClaim(doc *models.StateDocument) error {
	for id, s := range doc.Features {
		if s.Status == models.StatusCompleted && s.ClaimedBy != "" {
			return fmt.Errorf("feature %q is completed but still shows claimed_by %q", id, s.ClaimedBy)
		}
	}
	return nil
}

// validBlockedHasReason: a blocked feature always carries a human-
// readable reason; an empty reason means nobody will know why to
// unblock it.
func validBlockedHasReason(doc *models.StateDocument) error {
	for id, s := range doc.Features {
		if s.Status == models.StatusBlocked && s.BlockedReason == "" {
			return fmt.Errorf("feature %q is blocked without a blocked_reason", id)
		}
	}
	return nil
}

func validCIAttemptsNonNegative(doc *models.StateDocument) error {
	for id, s := range doc.Features {
		if s.CIAttempts < 0 {
			return fmt.Errorf("feature %q has negative ci_attempts", id)
		}
	}
	return nil
}

// validTimestampOrdering: completion can never precede claim.
func validTimestampOrdering(doc *models.StateDocument) error {
	for id, s := range doc.Features {
		if s.ClaimedAt != nil && s.CompletedAt != nil && s.CompletedAt.Before(*s.ClaimedAt) {
			return fmt.Errorf("feature %q completed_at precedes claimed_at", id)
		}
	}
	return nil
}
