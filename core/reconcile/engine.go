package reconcile

import (
	"sort"
)

// buildUnion creates the union of declared and present keys.
func buildUnion(declared map[string]struct{}, present map[string]Item) map[string]struct{} {
	union := make(map[string]struct{}, len(declared)+len(present))
	for key := range declared {
		union[key] = struct{}{}
	}
	for key := range present {
		union[key] = struct{}{}
	}
	return union
}

// buildResult creates a Result for a single key.
func buildResult(key string, declared map[string]struct{}, present map[string]Item, adapter Adapter) Result {
	_, isDeclared := declared[key]
	item, isPresent := present[key]

	return Result{
		Key:      key,
		Name:     adapter.ResolveName(key, item),
		Declared: isDeclared,
		Present:  isPresent,
	}
}

// buildResults computes the sorted result list for both sides.
func buildResults(declared map[string]struct{}, present map[string]Item, adapter Adapter) []Result {
	union := buildUnion(declared, present)

	results := make([]Result, 0, len(union))
	for key := range union {
		results = append(results, buildResult(key, declared, present, adapter))
	}

	// Sort results by key for deterministic output
	sort.Slice(results, func(i, j int) bool {
		return results[i].Key < results[j].Key
	})
	return results
}
