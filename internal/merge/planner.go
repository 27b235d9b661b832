// Package merge computes a deterministic merge order over completed
// features and renders the resulting plan as a document. The ordering
// algorithm is Kahn's, chosen deliberately over a DFS post-order walk:
// Kahn's naturally exposes the residual non-zero-in-degree vertices
// when a cycle exists, which is exactly the diagnostic the orchestrator
// needs to report before refusing to proceed to the merge phase.
package merge

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ridgeline-dev/conductor/pkg/models"
)

// ErrCycleDetected is returned by Plan when the completed-feature
// subgraph contains a cycle.
var ErrCycleDetected = errors.New("merge: cycle detected among completed features")

// CycleError carries the residual vertices left over when Kahn's
// algorithm terminates before draining the whole candidate set —
// precisely the set of features still tangled in a cycle.
type CycleError struct {
	Residual []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: residual=%v", ErrCycleDetected, e.Residual)
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// Plan computes a topological ordering, restricted to completed
// features, of the "depends on" edges in catalog. Ties within the same
// wave are broken by stable ascending feature id for reproducibility.
func Plan(catalog *models.Catalog, doc *models.StateDocument) ([]string, error) {
	completed := make(map[string]struct{})
	for id, s := range doc.Features {
		if s.Status == models.StatusCompleted {
			completed[id] = struct{}{}
		}
	}

	deps := make(map[string][]string, len(completed))
	for _, f := range catalog.Features {
		if _, ok := completed[f.ID]; !ok {
			continue
		}
		var restricted []string
		for _, d := range f.DependsOn {
			if _, ok := completed[d]; ok {
				restricted = append(restricted, d)
			}
		}
		deps[f.ID] = restricted
	}

	// successors[y] = features that depend on y, for in-degree decrement.
	successors := make(map[string][]string, len(completed))
	inDegree := make(map[string]int, len(completed))
	for id := range completed {
		inDegree[id] = 0
	}
	for id, ds := range deps {
		inDegree[id] = len(ds)
		for _, d := range ds {
			successors[d] = append(successors[d], id)
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var output []string
	for len(queue) > 0 {
		sort.Strings(queue)
		id := queue[0]
		queue = queue[1:]
		output = append(output, id)

		var freed []string
		for _, succ := range successors[id] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				freed = append(freed, succ)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(output) != len(completed) {
		seen := make(map[string]struct{}, len(output))
		for _, id := range output {
			seen[id] = struct{}{}
		}
		var residual []string
		for id := range completed {
			if _, ok := seen[id]; !ok {
				residual = append(residual, id)
			}
		}
		sort.Strings(residual)
		return nil, &CycleError{Residual: residual}
	}

	return output, nil
}
