package core

// ActivityMap is an insertion-ordered id -> activity mapping. It is not safe
// for concurrent mutation; the store guards its own instance.
type ActivityMap struct {
	order []ID
	byID  map[ID]*Activity
}

// NewActivityMap returns an empty map.
func NewActivityMap() *ActivityMap {
	return &ActivityMap{byID: make(map[ID]*Activity)}
}

// Add appends a, returning false if its id is already present.
func (m *ActivityMap) Add(a *Activity) bool {
	if _, ok := m.byID[a.ID]; ok {
		return false
	}
	m.byID[a.ID] = a
	m.order = append(m.order, a.ID)
	return true
}

// Get returns the activity for id.
func (m *ActivityMap) Get(id ID) (*Activity, bool) {
	a, ok := m.byID[id]
	return a, ok
}

// Has reports whether id is present.
func (m *ActivityMap) Has(id ID) bool {
	_, ok := m.byID[id]
	return ok
}

// Remove deletes id and reports whether it was present.
func (m *ActivityMap) Remove(id ID) bool {
	if _, ok := m.byID[id]; !ok {
		return false
	}
	delete(m.byID, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of activities.
func (m *ActivityMap) Len() int { return len(m.order) }

// IDs returns a copy of the ids in insertion order.
func (m *ActivityMap) IDs() []ID {
	ids := make([]ID, len(m.order))
	copy(ids, m.order)
	return ids
}

// Values returns the activities in insertion order.
func (m *ActivityMap) Values() []*Activity {
	out := make([]*Activity, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// Range calls fn for each activity in insertion order until fn returns false.
func (m *ActivityMap) Range(fn func(a *Activity) bool) {
	for _, id := range m.order {
		if !fn(m.byID[id]) {
			return
		}
	}
}

// Children derives the activities triggered by id with a reverse scan.
func (m *ActivityMap) Children(id ID) []*Activity {
	var out []*Activity
	m.Range(func(a *Activity) bool {
		if a.TriggerID == id && a.ID != id {
			out = append(out, a)
		}
		return true
	})
	return out
}
