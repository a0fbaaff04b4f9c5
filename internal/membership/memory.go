package membership

import (
	"context"
	"sync"
)

// InMemoryOracle holds group membership in process memory. It backs tests and
// single-binary development setups where no shared membership store exists.
type InMemoryOracle struct {
	mu     sync.RWMutex
	groups map[string]map[string]struct{}
}

// NewInMemoryOracle constructs an oracle with no groups.
func NewInMemoryOracle() *InMemoryOracle {
	return &InMemoryOracle{groups: make(map[string]map[string]struct{})}
}

// Add records identity as a member of groupID, creating the group if needed.
func (o *InMemoryOracle) Add(groupID, identity string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.groups[groupID] == nil {
		o.groups[groupID] = make(map[string]struct{})
	}
	o.groups[groupID][identity] = struct{}{}
}

// Remove drops identity from groupID. Removing an absent member is a no-op.
func (o *InMemoryOracle) Remove(groupID, identity string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if members, ok := o.groups[groupID]; ok {
		delete(members, identity)
		if len(members) == 0 {
			delete(o.groups, groupID)
		}
	}
}

// IsMember reports whether identity belongs to groupID. Unknown groups answer
// false and never error.
func (o *InMemoryOracle) IsMember(_ context.Context, identity, groupID string) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.groups[groupID][identity]
	return ok, nil
}
