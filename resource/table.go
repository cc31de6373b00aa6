package resource

import (
	"sync"
)

// UnifiedTable stores typed resources in a LocalBackend and notifies
// observers of their lifecycle.
type UnifiedTable struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

// NewTable creates a new unified table with a LocalBackend.
func NewTable() *UnifiedTable {
	return &UnifiedTable{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle.
func (t *UnifiedTable) Insert(typeID uint32, value any) Handle {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0
	}
	t.closeMu.RUnlock()

	handle, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return handle
}

// Get retrieves a value by handle.
func (t *UnifiedTable) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// GetTyped retrieves a value only if it matches the expected type.
func (t *UnifiedTable) GetTyped(handle Handle, typeID uint32) (any, bool) {
	actualTypeID, ok := t.backend.TypeID(handle)
	if !ok || actualTypeID != typeID {
		return nil, false
	}
	return t.backend.Get(handle)
}

// Remove drops a resource and returns (value, true) if found.
func (t *UnifiedTable) Remove(handle Handle) (any, bool) {
	typeID, _ := t.backend.TypeID(handle)
	value, ok := t.backend.Drop(handle)
	if !ok {
		return nil, false
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return value, true
}

// RemoveTyped drops a resource only if it was created with typeID.
// A handle of another type is left untouched.
func (t *UnifiedTable) RemoveTyped(handle Handle, typeID uint32) (any, bool) {
	actualTypeID, ok := t.backend.TypeID(handle)
	if !ok || actualTypeID != typeID {
		return nil, false
	}
	return t.Remove(handle)
}

// Borrow marks a live handle as borrowed; borrowed handles cannot be removed.
func (t *UnifiedTable) Borrow(handle Handle) bool {
	if !t.backend.Borrow(handle) {
		return false
	}
	typeID, _ := t.backend.TypeID(handle)
	t.notify(Event{Type: EventBorrowed, Handle: handle, TypeID: typeID})
	return true
}

// ReturnBorrow releases one borrow taken with Borrow.
func (t *UnifiedTable) ReturnBorrow(handle Handle) bool {
	if !t.backend.ReturnBorrow(handle) {
		return false
	}
	typeID, _ := t.backend.TypeID(handle)
	t.notify(Event{Type: EventBorrowReturned, Handle: handle, TypeID: typeID})
	return true
}

// Borrowed reports whether a live handle has outstanding borrows.
func (t *UnifiedTable) Borrowed(handle Handle) bool {
	n, ok := t.backend.Borrows(handle)
	return ok && n > 0
}

// Subscribe adds an observer for lifecycle events.
func (t *UnifiedTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Len returns the number of active resources.
func (t *UnifiedTable) Len() int {
	return t.backend.Len()
}

// Counts returns the number of active resources per type ID.
func (t *UnifiedTable) Counts() map[uint32]int {
	return t.backend.CountByType()
}

// Clear drops all resources. A borrowed resource is dropped once the
// resources borrowing it have been dropped; resources still borrowed after
// that are left in place.
func (t *UnifiedTable) Clear() {
	for {
		var handles []Handle
		t.backend.Each(func(h Handle, typeID uint32, value any) bool {
			handles = append(handles, h)
			return true
		})
		removed := 0
		for _, h := range handles {
			if _, ok := t.Remove(h); ok {
				removed++
			}
		}
		if removed == 0 || removed == len(handles) {
			return
		}
	}
}

// Close releases all resources and stops accepting operations.
func (t *UnifiedTable) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	return t.backend.Close()
}

func (t *UnifiedTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
