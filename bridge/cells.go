package bridge

import (
	"sync"

	"girbind/internal/errors"
)

// ErrUnknownCell is returned for closure cells that were never created or already released.
var ErrUnknownCell = errors.ErrUnknownCell

// Scope is the lifetime of a closure cell.
type Scope string

const (
	// ScopeCall cells live for one native call and are released by the caller.
	ScopeCall Scope = "call"
	// ScopeAsync cells are released after their first invocation.
	ScopeAsync Scope = "async"
	// ScopeNotified cells are released by a destroy notification.
	ScopeNotified Scope = "notified"
	// ScopeForever cells live until their owner is finalized.
	ScopeForever Scope = "forever"
)

// CellID identifies a closure cell. It is what native code stores as user data.
type CellID uintptr

type cell struct {
	value any
	scope Scope
	owner Handle
}

// Cells holds managed values referenced from native memory by id.
type Cells struct {
	mu    sync.Mutex
	next  CellID
	cells map[CellID]*cell
}

// NewCells creates an empty cell table.
func NewCells() *Cells {
	return &Cells{cells: map[CellID]*cell{}}
}

// New stores v and returns its id. Ids are never zero.
func (c *Cells) New(v any, scope Scope) CellID {
	return c.NewOwned(v, scope, 0)
}

// NewOwned stores v on behalf of the native object owner.
func (c *Cells) NewOwned(v any, scope Scope, owner Handle) CellID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.cells[c.next] = &cell{value: v, scope: scope, owner: owner}
	return c.next
}

// Value returns the value stored under id.
func (c *Cells) Value(id CellID) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.cells[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCell, "cell %d", id)
	}
	return cl.value, nil
}

// Invoked records an invocation through id and releases call-once cells.
func (c *Cells) Invoked(id CellID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.cells[id]; ok && cl.scope == ScopeAsync {
		delete(c.cells, id)
	}
}

// Release drops the cell id.
func (c *Cells) Release(id CellID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cells[id]; !ok {
		return errors.Wrapf(ErrUnknownCell, "cell %d", id)
	}
	delete(c.cells, id)
	return nil
}

// ReleaseOwned drops every cell owned by owner and returns how many were dropped.
func (c *Cells) ReleaseOwned(owner Handle) int {
	if owner == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, cl := range c.cells {
		if cl.owner == owner {
			delete(c.cells, id)
			n++
		}
	}
	return n
}

// Len returns the number of live cells.
func (c *Cells) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cells)
}
