package testutil

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/asynctrace/core"
)

// FakeSource is an in-process core.EventSource. Events are delivered
// synchronously, in subscription order, on the calling goroutine.
type FakeSource struct {
	mu    sync.Mutex
	order []core.Subscription
	hooks map[core.Subscription]core.Hooks
}

// NewFakeSource creates a source without subscribers.
func NewFakeSource() *FakeSource {
	return &FakeSource{hooks: make(map[core.Subscription]core.Hooks)}
}

// Subscribe implements core.EventSource.
func (s *FakeSource) Subscribe(hooks core.Hooks) core.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := core.Subscription(uuid.NewString())
	s.hooks[sub] = hooks
	s.order = append(s.order, sub)
	return sub
}

// Unsubscribe implements core.EventSource. Unknown handles are ignored.
func (s *FakeSource) Unsubscribe(sub core.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hooks[sub]; !ok {
		return
	}
	delete(s.hooks, sub)
	for i, o := range s.order {
		if o == sub {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (s *FakeSource) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *FakeSource) snapshot() []core.Hooks {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Hooks, 0, len(s.order))
	for _, sub := range s.order {
		out = append(out, s.hooks[sub])
	}
	return out
}

// Create emits an init notification.
func (s *FakeSource) Create(id core.ID, typ string, triggerID core.ID, resource any) {
	for _, h := range s.snapshot() {
		if h.OnCreate != nil {
			h.OnCreate(id, typ, triggerID, resource)
		}
	}
}

// Before emits a before notification.
func (s *FakeSource) Before(id core.ID) {
	for _, h := range s.snapshot() {
		if h.OnBefore != nil {
			h.OnBefore(id)
		}
	}
}

// After emits an after notification.
func (s *FakeSource) After(id core.ID) {
	for _, h := range s.snapshot() {
		if h.OnAfter != nil {
			h.OnAfter(id)
		}
	}
}

// Destroy emits a destroy notification.
func (s *FakeSource) Destroy(id core.ID) {
	for _, h := range s.snapshot() {
		if h.OnDestroy != nil {
			h.OnDestroy(id)
		}
	}
}

// Lifecycle emits before, after and destroy for id.
func (s *FakeSource) Lifecycle(id core.ID) {
	s.Before(id)
	s.After(id)
	s.Destroy(id)
}
