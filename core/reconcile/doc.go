// Package reconcile provides a small, generic engine for reconciling a set of keys
// declared by a source of truth against the keys present in a target system.
//
// # Architecture
//
// 1. Adapter: scope-specific logic that loads the declared set and the present set
// (with the records backing each present key) and resolves display names.
//
// 2. Engine: builds the union of keys, flags each key as declared and/or present,
// and derives stale (present, not declared) and missing (declared, not present) keys.
//
// 3. Plan/Apply: stale keys become ActionRetract actions when Options.DoRetract is set.
// ApplyPlan hands them to the adapter's Mutator (or its RetractBatch method when
// implemented), attempting every action and joining failures.
//
// # Usage Example
//
//	spec := &reconcile.Spec{Adapter: adapter}
//	plan, executed, err := reconcile.ReconcileAndApply(ctx, spec, reconcile.Options{DoRetract: true})
//
// The enrolment snapshot pass uses one adapter per (course, role) pair: the declared
// set comes from the memberships seen in the feed, the present set from the
// platform's role assignments made through the feed's own enrol instance.
package reconcile
