// Package store keeps activity records in memory.
//
// The Store is the authoritative id -> activity mapping of a collector. It
// only ever grows while events arrive: creation adds a record, before/after/
// destroy append timestamps, and nothing is dropped unless Remove is called.
// Pruning works on copies of the map and never touches the store.
//
// Example:
//
//	s := store.New(time.Now())
//	a, err := s.OnCreate(7, "FSREQWRAP", core.RootID, payload)
//	_, err = s.OnBefore(7)
package store
