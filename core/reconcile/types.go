package reconcile

// Item is an adapter-defined record backing a present key (e.g. an enrolled user).
type Item any

// Result represents the reconciliation output for a single key.
type Result struct {
	// Key is the unique identifier within the reconciled scope.
	Key string `json:"key"`

	// Name is the display name of the entity, when the adapter can resolve one.
	Name string `json:"name"`

	// Declared indicates the key is asserted by the source of truth.
	Declared bool `json:"declared"`

	// Present indicates the key currently exists in the target.
	Present bool `json:"present"`
}

// Stale reports a key present in the target that the source no longer declares.
func (r Result) Stale() bool {
	return r.Present && !r.Declared
}

// Missing reports a key declared by the source that the target lacks.
func (r Result) Missing() bool {
	return r.Declared && !r.Present
}

// Spec defines the configuration for a reconciliation operation.
type Spec struct {
	// Adapter provides scope-specific loading and naming.
	Adapter Adapter
}

// ActionType represents the type of mutation action.
type ActionType string

const (
	// ActionRetract removes a stale key from the target.
	ActionRetract ActionType = "retract"
)

// Action represents a planned mutation operation.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Key is the entity identifier.
	Key string `json:"key"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`

	// Item carries the present-side record for the mutator.
	Item Item `json:"-"`
}

// Plan contains reconciliation results and planned actions.
type Plan struct {
	// Results contains per-key reconciliation data, sorted by key.
	Results []Result `json:"results"`

	// Actions contains planned mutation operations, sorted by key.
	Actions []Action `json:"actions"`

	// Summary provides aggregate counts.
	Summary PlanSummary `json:"summary"`
}

// PlanSummary provides aggregate statistics for a plan.
type PlanSummary struct {
	// TotalItems is the number of unique keys across both sides.
	TotalItems int `json:"total_items"`

	// Stale counts keys present in the target but not declared.
	Stale int `json:"stale"`

	// Missing counts keys declared but absent from the target.
	Missing int `json:"missing"`

	// RetractActions counts planned retractions.
	RetractActions int `json:"retract_actions"`
}

// Add accumulates another summary into s.
func (s *PlanSummary) Add(o PlanSummary) {
	s.TotalItems += o.TotalItems
	s.Stale += o.Stale
	s.Missing += o.Missing
	s.RetractActions += o.RetractActions
}

// Options controls plan and apply behavior.
type Options struct {
	// DoRetract enables planning retractions of stale keys.
	DoRetract bool

	// DryRun prevents execution of any mutations if true.
	DryRun bool
}
