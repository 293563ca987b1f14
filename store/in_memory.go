package store

import (
	"sync"
	"time"

	"github.com/hupe1980/asynctrace/core"
)

// Options configures a Store.
type Options struct {
	// Now is the clock used to timestamp events. Defaults to time.Now.
	Now func() time.Time
}

// Store is the in-memory activity store. It keeps activities in creation
// order and timestamps every event relative to the start instant. Writes are
// expected from a single goroutine; the lock makes concurrent reads safe.
type Store struct {
	mu         sync.RWMutex
	start      time.Time
	now        func() time.Time
	activities *core.ActivityMap
}

// New creates an empty store whose timestamps are relative to start.
func New(start time.Time, optFns ...func(o *Options)) *Store {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		start:      start,
		now:        opts.Now,
		activities: core.NewActivityMap(),
	}
}

// Start returns the instant timestamps are relative to.
func (s *Store) Start() time.Time { return s.start }

// Elapsed returns the current time relative to the start instant.
func (s *Store) Elapsed() time.Duration { return s.now().Sub(s.start) }

// OnCreate records a new activity and its init timestamp. A second creation
// for a known id returns a DuplicateIDError and leaves the record untouched.
func (s *Store) OnCreate(id core.ID, typ string, triggerID core.ID, payload any) (*core.Activity, error) {
	ts := s.Elapsed()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.activities.Get(id); ok {
		return existing, &core.DuplicateIDError{ID: id, Type: typ}
	}
	a := core.NewActivity(id, typ, triggerID, payload)
	a.Append(core.EventInit, ts)
	s.activities.Add(a)
	return a, nil
}

// OnBefore appends a before timestamp.
func (s *Store) OnBefore(id core.ID) (*core.Activity, error) {
	return s.record(core.EventBefore, id)
}

// OnAfter appends an after timestamp.
func (s *Store) OnAfter(id core.ID) (*core.Activity, error) {
	return s.record(core.EventAfter, id)
}

// OnDestroy appends a destroy timestamp.
func (s *Store) OnDestroy(id core.ID) (*core.Activity, error) {
	return s.record(core.EventDestroy, id)
}

func (s *Store) record(event core.Event, id core.ID) (*core.Activity, error) {
	ts := s.Elapsed()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities.Get(id)
	if !ok {
		return nil, &core.UnknownIDError{ID: id, Event: event}
	}
	a.Append(event, ts)
	return a, nil
}

// AttachStack stores a captured stack on the activity.
func (s *Store) AttachStack(id core.ID, event core.Event, stack *core.Stack) error {
	return s.Update(id, func(a *core.Activity) { a.AttachStack(event, stack) })
}

// Update runs fn on the activity under the write lock.
func (s *Store) Update(id core.ID, fn func(a *core.Activity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities.Get(id)
	if !ok {
		return &core.UnknownIDError{ID: id}
	}
	fn(a)
	return nil
}

// Get returns the activity for id.
func (s *Store) Get(id core.ID) (*core.Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activities.Get(id)
}

// Activities returns the live ordered map. Callers must not mutate it while
// the host is still delivering events.
func (s *Store) Activities() *core.ActivityMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activities
}

// Values returns the activities in creation order.
func (s *Store) Values() []*core.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activities.Values()
}

// Len returns the number of activities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activities.Len()
}

// Remove drops an activity and reports whether it was present.
func (s *Store) Remove(id core.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activities.Remove(id)
}
