package reconcile

import "context"

// Adapter defines the interface for scope-specific reconciliation logic.
// One adapter instance covers one scope, e.g. the members holding one role
// in one course.
type Adapter interface {
	// Name returns a label for the scope, used in reasons and logs.
	Name() string

	// LoadDeclared returns the set of keys the source of truth asserts.
	LoadDeclared(ctx context.Context) (map[string]struct{}, error)

	// LoadPresent returns the keys currently present in the target, with their records.
	LoadPresent(ctx context.Context) (map[string]Item, error)

	// ResolveName returns the display name for a present item. item may be nil.
	ResolveName(key string, item Item) string
}

// Mutator is implemented by adapters that can apply planned actions.
type Mutator interface {
	// Retract removes a stale key from the target.
	Retract(ctx context.Context, key string, item Item) error
}

// BatchRetracter is implemented by mutators that apply all retractions of a
// scope at once. ApplyPlan prefers it over per-key Retract calls.
type BatchRetracter interface {
	RetractBatch(ctx context.Context, actions []Action) (int, error)
}
