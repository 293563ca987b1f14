// Package prune filters an activity map down to the activities of interest.
package prune

import "github.com/hupe1980/asynctrace/core"

// Keep decides whether an activity survives pruning.
type Keep func(a *core.Activity) bool

// Prune returns a new map with the activities keep approves, in their
// original order. The source map is never modified.
func Prune(activities *core.ActivityMap, keep Keep) *core.ActivityMap {
	out := core.NewActivityMap()
	if activities == nil {
		return out
	}
	activities.Range(func(a *core.Activity) bool {
		if keep == nil || keep(a) {
			out.Add(a)
		}
		return true
	})
	return out
}

// Types keeps activities whose type is one of types.
func Types(types ...string) Keep {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(a *core.Activity) bool {
		_, ok := set[a.Type]
		return ok
	}
}

// Any keeps activities approved by at least one of keeps.
func Any(keeps ...Keep) Keep {
	return func(a *core.Activity) bool {
		for _, k := range keeps {
			if k(a) {
				return true
			}
		}
		return false
	}
}

// Not inverts keep.
func Not(keep Keep) Keep {
	return func(a *core.Activity) bool { return !keep(a) }
}

// Destroyed keeps activities the host already released.
func Destroyed(a *core.Activity) bool { return a.Destroyed() }
