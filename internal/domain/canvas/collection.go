package canvas

import (
	"fmt"
	"sync"
)

// ErrDuplicateID is returned when appending a component whose id is already
// present in the collection.
var ErrDuplicateID = fmt.Errorf("component id already present")

// Collection is an ordered, mutable list of components scoped to one
// workspace mode. Insertion order is display order. Ids are unique within a
// collection; types are not (two vitals blocks may legitimately coexist).
// All operations are safe for concurrent use via sync.RWMutex, and every
// component handed out is a deep copy.
//
// The slice representation keeps future reordering cheap even though no
// reorder operation is exposed yet.
type Collection struct {
	mu         sync.RWMutex
	components []*Component

	// highlightGen increments every time a component's highlight is set,
	// so a decay action scheduled against an older generation can tell it
	// has been superseded.
	highlightGen map[string]uint64
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{highlightGen: make(map[string]uint64)}
}

// Append adds a component at the end of the collection. The component is
// validated and its id must not already be present. Type duplication is
// allowed.
func (c *Collection) Append(comp *Component) error {
	if err := comp.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexOfLocked(comp.ID) != -1 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, comp.ID)
	}
	stored := comp.clone()
	if stored.Title == "" {
		stored.Title = CanonicalTitle(stored.Type)
	}
	if stored.Data == nil {
		stored.Data = map[string]interface{}{}
	}
	c.components = append(c.components, stored)
	return nil
}

// RemoveByID removes the component with the given id. Absent ids are a
// no-op, not an error: a deferred update may race with a manual deletion.
func (c *Collection) RemoveByID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOfLocked(id)
	if idx == -1 {
		return
	}
	c.components = append(c.components[:idx], c.components[idx+1:]...)
	delete(c.highlightGen, id)
}

// RemoveByType removes every component of the given type and returns how
// many were removed. Used by the reconciler's remove action, which is
// all-match by contract (unlike update, which is first-match).
func (c *Collection) RemoveByType(t ComponentType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.components[:0]
	removed := 0
	for _, comp := range c.components {
		if comp.Type == t {
			delete(c.highlightGen, comp.ID)
			removed++
			continue
		}
		kept = append(kept, comp)
	}
	c.components = kept
	return removed
}

// FindByType returns a copy of the first component (in display order) whose
// type matches. First-match is a deliberate simplification: the assistant
// addresses components by type, so only the first of a repeated type is
// reachable by automated update.
func (c *Collection) FindByType(t ComponentType) (*Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, comp := range c.components {
		if comp.Type == t {
			return comp.clone(), true
		}
	}
	return nil, false
}

// Get returns a copy of the component with the given id.
func (c *Collection) Get(id string) (*Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := c.indexOfLocked(id)
	if idx == -1 {
		return nil, false
	}
	return c.components[idx].clone(), true
}

// UpdatePayload merges patch into the component's payload via the merge
// resolver, marks it highlighted, and returns the new highlight generation.
// Absent ids return ok=false without error.
func (c *Collection) UpdatePayload(id string, patch map[string]interface{}) (gen uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOfLocked(id)
	if idx == -1 {
		return 0, false
	}
	comp := c.components[idx]
	comp.Data = MergePayload(comp.Type, comp.Data, patch)
	comp.IsHighlighted = true
	c.highlightGen[id]++
	return c.highlightGen[id], true
}

// MergeData merges patch into the component's payload without touching
// highlight state. Used for the clinician's manual edits, which must not
// trigger sync feedback.
func (c *Collection) MergeData(id string, patch map[string]interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOfLocked(id)
	if idx == -1 {
		return false
	}
	comp := c.components[idx]
	comp.Data = MergePayload(comp.Type, comp.Data, patch)
	return true
}

// SetHighlight sets the highlight flag unconditionally. Absent ids are a
// no-op.
func (c *Collection) SetHighlight(id string, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOfLocked(id)
	if idx == -1 {
		return
	}
	c.components[idx].IsHighlighted = v
	if v {
		c.highlightGen[id]++
	}
}

// ClearHighlightIfCurrent clears the highlight only when the component still
// exists and its highlight generation still equals gen. A decay action
// scheduled before a later update carries a stale generation and becomes a
// no-op, so a fresh highlight is never cleared early.
func (c *Collection) ClearHighlightIfCurrent(id string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOfLocked(id)
	if idx == -1 {
		return
	}
	if c.highlightGen[id] != gen {
		return
	}
	c.components[idx].IsHighlighted = false
}

// Components returns a snapshot of the collection in display order.
func (c *Collection) Components() []*Component {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Component, 0, len(c.components))
	for _, comp := range c.components {
		out = append(out, comp.clone())
	}
	return out
}

// Len returns the number of components.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.components)
}

// Summaries returns the {type, title, data} projection sent to the Clinical
// Assistant. Ids and flags are omitted to keep the prompt small.
func (c *Collection) Summaries() []Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Summary, 0, len(c.components))
	for _, comp := range c.components {
		out = append(out, Summary{
			Type:  comp.Type,
			Title: comp.Title,
			Data:  deepCopyMap(comp.Data),
		})
	}
	return out
}

// DeepCopy returns an independent collection with value-equal components.
// Highlight generations are not carried over: pending decay actions against
// the source must not reach into the copy.
func (c *Collection) DeepCopy() *Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := NewCollection()
	for _, comp := range c.components {
		cp.components = append(cp.components, comp.clone())
	}
	return cp
}

// Replace swaps the collection's contents for those of other (deep-copied).
// Used by the finish-building transition to seed the session workspace.
func (c *Collection) Replace(other *Collection) {
	snapshot := other.Components()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.components = snapshot
	c.highlightGen = make(map[string]uint64)
}

func (c *Collection) indexOfLocked(id string) int {
	for i, comp := range c.components {
		if comp.ID == id {
			return i
		}
	}
	return -1
}
