package resource

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestUnifiedTable_Basic(t *testing.T) {
	table := NewTable()

	// Insert
	h := table.Insert(1, "test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	// Get
	val, ok := table.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	// GetTyped with correct type
	if _, ok = table.GetTyped(h, 1); !ok {
		t.Fatal("GetTyped with correct type failed")
	}

	// GetTyped with wrong type
	if _, ok = table.GetTyped(h, 2); ok {
		t.Fatal("GetTyped with wrong type should fail")
	}

	// RemoveTyped with wrong type leaves the handle alone
	if _, ok = table.RemoveTyped(h, 2); ok {
		t.Fatal("RemoveTyped with wrong type should fail")
	}
	if table.Len() != 1 {
		t.Fatal("RemoveTyped with wrong type removed the resource")
	}

	// Remove
	val, ok = table.RemoveTyped(h, 1)
	if !ok {
		t.Fatal("Remove failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
}

func TestUnifiedTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	// Insert should trigger EventCreated
	h := table.Insert(1, "test")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated {
		t.Fatal("Expected EventCreated")
	}
	if obs.events[0].Handle != h {
		t.Fatal("Wrong handle in event")
	}

	table.Borrow(h)
	table.ReturnBorrow(h)
	if len(obs.events) != 3 || obs.events[1].Type != EventBorrowed || obs.events[2].Type != EventBorrowReturned {
		t.Fatalf("unexpected borrow events: %v", obs.events)
	}

	// Remove should trigger EventDropped
	table.Remove(h)
	if len(obs.events) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(obs.events))
	}
	if obs.events[3].Type != EventDropped {
		t.Fatal("Expected EventDropped")
	}
}

func TestUnifiedTable_BorrowBlocksRemove(t *testing.T) {
	table := NewTable()
	h := table.Insert(1, "machine")

	if !table.Borrow(h) {
		t.Fatal("Borrow failed")
	}
	if !table.Borrowed(h) {
		t.Fatal("Borrowed should report the borrow")
	}
	if _, ok := table.Remove(h); ok {
		t.Fatal("Remove should fail while borrowed")
	}
	table.ReturnBorrow(h)
	if table.Borrowed(h) {
		t.Fatal("Borrowed after ReturnBorrow")
	}
	if _, ok := table.Remove(h); !ok {
		t.Fatal("Remove should succeed after the borrow is returned")
	}
}

func TestUnifiedTable_Clear(t *testing.T) {
	table := NewTable()

	table.Insert(1, "a")
	table.Insert(1, "b")
	table.Insert(1, "c")

	if table.Len() != 3 {
		t.Fatal("Expected Len() == 3")
	}

	table.Clear()

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Clear")
	}
}

func TestUnifiedTable_Close(t *testing.T) {
	table := NewTable()

	table.Insert(1, "a")
	table.Insert(1, "b")

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Insert should fail after Close
	if h := table.Insert(1, "c"); h != 0 {
		t.Fatal("Expected Insert to fail after Close")
	}
}

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestUnifiedTable_DropperInterface(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}

	h := table.Insert(1, d)
	table.Remove(h)
	table.Remove(h)

	if d.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", d.count)
	}
}

func TestTyped(t *testing.T) {
	table := NewTable()
	names := NewTyped[string](table, 7)
	counts := NewTyped[int](table, 8)

	h := names.Insert("X")
	n := counts.Insert(3)

	if v, ok := names.Get(h); !ok || v != "X" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if _, ok := names.Get(n); ok {
		t.Fatal("typed view resolved a handle of another type")
	}
	if c := table.Counts(); c[7] != 1 || c[8] != 1 {
		t.Fatalf("Counts = %v", c)
	}

	seen := 0
	names.Each(func(h Handle, v string) bool {
		seen++
		return true
	})
	if seen != 1 {
		t.Fatalf("Each visited %d", seen)
	}

	if _, ok := counts.Remove(h); ok {
		t.Fatal("typed Remove accepted a handle of another type")
	}
	if v, ok := names.Remove(h); !ok || v != "X" {
		t.Fatalf("Remove = %q, %v", v, ok)
	}
	if table.Len() != 1 {
		t.Fatalf("table Len = %d", table.Len())
	}
}

type borrower struct {
	table  *UnifiedTable
	target Handle
}

func (b *borrower) Drop() {
	b.table.ReturnBorrow(b.target)
}

func TestUnifiedTable_ClearReleasesBorrowersFirst(t *testing.T) {
	table := NewTable()
	owner := table.Insert(1, "machine")
	if !table.Borrow(owner) {
		t.Fatal("Borrow failed")
	}
	table.Insert(2, &borrower{table: table, target: owner})

	table.Clear()

	if table.Len() != 0 {
		t.Fatalf("Len after Clear = %d", table.Len())
	}
}

func TestUnifiedTable_ClearKeepsStuckBorrows(t *testing.T) {
	table := NewTable()
	owner := table.Insert(1, "machine")
	table.Insert(1, "text")
	table.Borrow(owner)

	table.Clear()

	if table.Len() != 1 {
		t.Fatalf("Len after Clear = %d", table.Len())
	}
	if _, ok := table.Get(owner); !ok {
		t.Fatal("borrowed resource was dropped")
	}
}
