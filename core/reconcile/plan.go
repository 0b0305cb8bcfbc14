package reconcile

import (
	"context"
	"errors"
	"fmt"
)

// ReconcileWithPlan loads both sides of the scope and returns a plan with results and actions.
// It does NOT execute actions; use ApplyPlan for that.
func ReconcileWithPlan(ctx context.Context, spec *Spec, opts Options) (*Plan, error) {
	declared, err := spec.Adapter.LoadDeclared(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load declared keys for %s: %w", spec.Adapter.Name(), err)
	}

	present, err := spec.Adapter.LoadPresent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load present keys for %s: %w", spec.Adapter.Name(), err)
	}

	results := buildResults(declared, present, spec.Adapter)
	summary, actions := buildPlanFromResults(results, present, spec.Adapter, opts)

	return &Plan{
		Results: results,
		Actions: actions,
		Summary: summary,
	}, nil
}

// ApplyPlan executes the actions in a plan.
// Every action is attempted; failures are joined into the returned error and
// executed counts only the actions that succeeded.
func ApplyPlan(ctx context.Context, spec *Spec, plan *Plan, opts Options) (executed int, err error) {
	if opts.DryRun || len(plan.Actions) == 0 {
		return 0, nil
	}

	mutator, ok := spec.Adapter.(Mutator)
	if !ok {
		return 0, fmt.Errorf("adapter %s does not implement Mutator interface", spec.Adapter.Name())
	}

	var retractions []Action
	for _, action := range plan.Actions {
		if action.Type == ActionRetract {
			retractions = append(retractions, action)
		}
	}

	if batch, ok := mutator.(BatchRetracter); ok {
		return batch.RetractBatch(ctx, retractions)
	}

	var errs []error
	for _, action := range retractions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := mutator.Retract(ctx, action.Key, action.Item); err != nil {
			errs = append(errs, fmt.Errorf("failed to retract %s: %w", action.Key, err))
			continue
		}
		executed++
	}

	return executed, errors.Join(errs...)
}

// ReconcileAndApply is a convenience wrapper that plans and applies actions.
func ReconcileAndApply(ctx context.Context, spec *Spec, opts Options) (*Plan, int, error) {
	plan, err := ReconcileWithPlan(ctx, spec, opts)
	if err != nil {
		return nil, 0, err
	}

	executed, err := ApplyPlan(ctx, spec, plan, opts)
	return plan, executed, err
}

// buildPlanFromResults generates a summary and action plan from reconciliation results.
func buildPlanFromResults(results []Result, present map[string]Item, adapter Adapter, opts Options) (PlanSummary, []Action) {
	var summary PlanSummary
	var actions []Action

	summary.TotalItems = len(results)

	for _, result := range results {
		if result.Missing() {
			summary.Missing++
		}
		if !result.Stale() {
			continue
		}
		summary.Stale++

		if opts.DoRetract {
			actions = append(actions, Action{
				Type:   ActionRetract,
				Key:    result.Key,
				Reason: fmt.Sprintf("no longer declared in %s", adapter.Name()),
				Item:   present[result.Key],
			})
			summary.RetractActions++
		}
	}

	return summary, actions
}
