package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend()

	// Create a resource
	handle, err := b.Create(1, "test value")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("Expected non-zero handle")
	}

	// Get it back
	val, ok := b.Get(handle)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	typeID, ok := b.TypeID(handle)
	if !ok || typeID != 1 {
		t.Fatalf("TypeID = %d, %v", typeID, ok)
	}

	// Drop it
	val, ok = b.Drop(handle)
	if !ok {
		t.Fatal("Drop failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	// Should not exist anymore
	if _, ok = b.Get(handle); ok {
		t.Fatal("Expected Get to fail after Drop")
	}
}

func TestLocalBackend_Borrow(t *testing.T) {
	b := NewLocalBackend()

	handle, _ := b.Create(1, 100)

	if !b.Borrow(handle) {
		t.Fatal("Borrow failed")
	}
	if n, ok := b.Borrows(handle); !ok || n != 1 {
		t.Fatalf("Borrows = %d, %v", n, ok)
	}

	// Cannot drop with outstanding borrow
	if _, ok := b.Drop(handle); ok {
		t.Fatal("Drop should fail with outstanding borrow")
	}

	// Return borrow
	if !b.ReturnBorrow(handle) {
		t.Fatal("ReturnBorrow failed")
	}
	if b.ReturnBorrow(handle) {
		t.Fatal("ReturnBorrow without a borrow should fail")
	}

	// Now can drop
	if _, ok := b.Drop(handle); !ok {
		t.Fatal("Drop should succeed after returning borrow")
	}
}

func TestLocalBackend_MultipleBorrows(t *testing.T) {
	b := NewLocalBackend()

	handle, _ := b.Create(1, 100)

	for i := 0; i < 5; i++ {
		if !b.Borrow(handle) {
			t.Fatalf("Borrow %d failed", i)
		}
	}

	if _, ok := b.Drop(handle); ok {
		t.Fatal("Drop should fail with outstanding borrows")
	}

	for i := 0; i < 5; i++ {
		if !b.ReturnBorrow(handle) {
			t.Fatalf("ReturnBorrow %d failed", i)
		}
	}

	if _, ok := b.Drop(handle); !ok {
		t.Fatal("Drop should succeed after returning all borrows")
	}
}

func TestLocalBackend_StaleHandle(t *testing.T) {
	b := NewLocalBackend()

	h1, _ := b.Create(1, "first")
	if _, ok := b.Drop(h1); !ok {
		t.Fatal("Drop failed")
	}

	// The slot is reused with a new generation.
	h2, _ := b.Create(1, "second")
	if h2.index() != h1.index() {
		t.Fatalf("expected slot reuse, got index %d and %d", h1.index(), h2.index())
	}
	if h1 == h2 {
		t.Fatal("reused slot must produce a different handle")
	}

	if _, ok := b.Get(h1); ok {
		t.Fatal("stale handle resolved")
	}
	if _, ok := b.Drop(h1); ok {
		t.Fatal("double drop through a stale handle succeeded")
	}
	if v, ok := b.Get(h2); !ok || v != "second" {
		t.Fatalf("Get(h2) = %v, %v", v, ok)
	}
}

func TestLocalBackend_GenerationWraps(t *testing.T) {
	b := NewLocalBackend()

	var last Handle
	for i := 0; i < 600; i++ {
		h, err := b.Create(1, i)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if h == 0 {
			t.Fatal("zero handle issued")
		}
		last = h
		if _, ok := b.Drop(h); !ok {
			t.Fatalf("Drop %d failed", i)
		}
	}
	if last.generation() == 0 {
		t.Fatal("generation 0 must never be issued")
	}
}

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend()

	b.Create(1, "a")
	b.Create(1, "b")

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := b.Create(1, "test")
	if !errors.Is(err, ErrClosed) {
		t.Fatal("Expected ErrClosed after Close")
	}
	if b.Len() != 0 {
		t.Fatalf("Len after Close = %d", b.Len())
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h, _ := b.Create(1, id)
			b.Borrow(h)
			b.ReturnBorrow(h)
			b.Drop(h)
		}(i)
	}

	wg.Wait()
	if b.Len() != 0 {
		t.Fatalf("Len = %d after concurrent create/drop", b.Len())
	}
}

func TestLocalBackend_Len(t *testing.T) {
	b := NewLocalBackend()

	if b.Len() != 0 {
		t.Fatal("Expected Len() == 0 initially")
	}

	h1, _ := b.Create(1, "a")
	h2, _ := b.Create(2, "b")
	b.Create(1, "c")

	if b.Len() != 3 {
		t.Fatalf("Expected Len() == 3, got %d", b.Len())
	}
	counts := b.CountByType()
	if counts[1] != 2 || counts[2] != 1 {
		t.Fatalf("CountByType = %v", counts)
	}

	b.Drop(h1)
	if b.Len() != 2 {
		t.Fatalf("Expected Len() == 2, got %d", b.Len())
	}

	b.Drop(h2)
	if b.Len() != 1 {
		t.Fatalf("Expected Len() == 1, got %d", b.Len())
	}
}

func TestLocalBackend_Each(t *testing.T) {
	b := NewLocalBackend()

	b.Create(1, "a")
	b.Create(2, "b")
	b.Create(1, "c")

	count := 0
	b.Each(func(h Handle, typeID uint32, value any) bool {
		count++
		if got, _ := b.Get(h); got != value {
			t.Errorf("Each handle %v does not resolve to its value", h)
		}
		return true
	})

	if count != 3 {
		t.Fatalf("Expected to iterate over 3 items, got %d", count)
	}

	count = 0
	b.Each(func(h Handle, typeID uint32, value any) bool {
		count++
		return false
	})

	if count != 1 {
		t.Fatalf("Expected to iterate over 1 item (early term), got %d", count)
	}
}

func TestLocalBackend_InvalidHandle(t *testing.T) {
	b := NewLocalBackend()

	// Handle 0 is always invalid
	if _, ok := b.Get(0); ok {
		t.Fatal("Handle 0 should be invalid")
	}
	if _, ok := b.TypeID(0); ok {
		t.Fatal("Handle 0 should be invalid for TypeID")
	}
	if b.Borrow(0) {
		t.Fatal("Handle 0 should fail Borrow")
	}
	if b.ReturnBorrow(0) {
		t.Fatal("Handle 0 should fail ReturnBorrow")
	}
	if _, ok := b.Drop(0); ok {
		t.Fatal("Handle 0 should fail Drop")
	}

	// Non-existent handle
	if _, ok := b.Get(999); ok {
		t.Fatal("Non-existent handle should be invalid")
	}
}
