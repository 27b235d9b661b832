package claim

import "errors"

// ErrNotFound is returned when an operation names a feature id absent
// from the catalog/state document.
var ErrNotFound = errors.New("claim: feature not found")

// ErrUnavailable is returned by Claim when the feature is not in a
// claimable state (already in progress, completed, or blocked).
var ErrUnavailable = errors.New("claim: feature unavailable")

// ErrEmpty is returned by ClaimNext when no feature is currently
// claimable — every ready feature is either claimed or there are none.
var ErrEmpty = errors.New("claim: no claimable feature")

// ErrWrongOwner reports that a caller does not hold a claim. No Manager
// operation returns it: Release, Complete and Block act on the feature id
// without checking which worker holds the claim.
var ErrWrongOwner = errors.New("claim: caller does not hold this claim")

// ErrIllegalTransition is returned when a requested status change is not
// reachable from the feature's current status.
var ErrIllegalTransition = errors.New("claim: illegal status transition")
