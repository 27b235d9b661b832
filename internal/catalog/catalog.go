// Package catalog loads and validates the static feature backlog
// document. The catalog is read once at startup and never mutated —
// only the corresponding state document changes as work progresses.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ridgeline-dev/conductor/pkg/models"
)

// Load reads and validates a catalog document from path.
func Load(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var cat models.Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	if err := Validate(&cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks the catalog for duplicate feature ids, dependencies
// naming unknown ids, cycles among the dependency edges, and
// integration-test sets naming unknown ids. Used both by Load and by a dry-run
// command so operators can catch a bad catalog before touching state.
func Validate(cat *models.Catalog) error {
	ids := make(map[string]struct{}, len(cat.Features))
	for _, f := range cat.Features {
		if _, dup := ids[f.ID]; dup {
			return fmt.Errorf("catalog: duplicate feature id %q", f.ID)
		}
		ids[f.ID] = struct{}{}
	}

	for _, f := range cat.Features {
		for _, dep := range f.DependsOn {
			if _, ok := ids[dep]; !ok {
				return fmt.Errorf("catalog: feature %q depends on unknown id %q", f.ID, dep)
			}
		}
	}

	if cycle := findCycle(cat); cycle != nil {
		return fmt.Errorf("catalog: dependency cycle detected: %v", cycle)
	}

	for _, set := range cat.IntegrationTests {
		for _, id := range set.FeatureIDs {
			if _, ok := ids[id]; !ok {
				return fmt.Errorf("catalog: integration test set %q references unknown feature id %q", set.Name, id)
			}
		}
	}

	return nil
}

// findCycle runs a DFS coloring walk over the full catalog (not
// restricted to any particular status) and returns one offending path
// if a cycle exists, or nil if the graph is a DAG.
func findCycle(cat *models.Catalog) []string {
	deps := make(map[string][]string, len(cat.Features))
	for _, f := range cat.Features {
		d := append([]string(nil), f.DependsOn...)
		sort.Strings(d)
		deps[f.ID] = d
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	color := make(map[string]int, len(deps))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = visiting
		path = append(path, id)
		for _, dep := range deps[id] {
			switch color[dep] {
			case visiting:
				return append(append([]string(nil), path...), dep)
			case unvisited:
				if cyc := visit(dep); cyc != nil {
					return cyc
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = done
		return nil
	}

	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == unvisited {
			if cyc := visit(id); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}
