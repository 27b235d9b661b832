package models

// StateDocument is the root of the persisted state file: one FeatureState
// per feature id. It is kept separate from Catalog (see §3 of
// SPEC_FULL.md) so the source-controlled catalog and the shared runtime
// state never collide on branch switches.
type StateDocument struct {
	Features map[string]*FeatureState `json:"features"`
}

// NewStateDocument returns an empty document ready for initialization
// from a catalog.
func NewStateDocument() *StateDocument {
	return &StateDocument{Features: make(map[string]*FeatureState)}
}

// Clone deep-copies the document so mutators never alias the committed
// version held by the StateStore.
func (d *StateDocument) Clone() *StateDocument {
	if d == nil {
		return NewStateDocument()
	}
	clone := &StateDocument{Features: make(map[string]*FeatureState, len(d.Features))}
	for id, s := range d.Features {
		clone.Features[id] = s.Clone()
	}
	return clone
}

// InitializeFromCatalog populates a Pending FeatureState for every feature
// id in the catalog that does not already have a state record. Existing
// records are left untouched — the StateStore must never overwrite
// existing state on startup (SPEC_FULL.md §4.2 / spec.md §4.2).
func (d *StateDocument) InitializeFromCatalog(cat *Catalog) {
	if d.Features == nil {
		d.Features = make(map[string]*FeatureState)
	}
	for _, f := range cat.Features {
		if _, exists := d.Features[f.ID]; exists {
			continue
		}
		d.Features[f.ID] = &FeatureState{
			ID:       f.ID,
			Status:   StatusPending,
			CIStatus: CIUnset,
		}
	}
}
