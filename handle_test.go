package corostack

import (
	"sync"
	"testing"
)

func TestHandleRetainRelease(t *testing.T) {
	released := 0
	h := NewHandle("task", OnRelease(func(*Handle) { released++ }))

	if refs := h.Refs(); refs != 1 {
		t.Fatalf("new handle must hold one reference: got %d", refs)
	}
	if h.Retain() != h {
		t.Fatal("retain must return the same handle")
	}
	if h.Release() {
		t.Fatal("handle released while a reference is still held")
	}
	if released != 0 {
		t.Fatalf("release hook called too early: %d", released)
	}
	if !h.Release() {
		t.Fatal("last release must report the handle as freed")
	}
	if released != 1 {
		t.Fatalf("release hook must be called once: got %d", released)
	}
	if h.Alive() {
		t.Fatal("handle still alive after its last release")
	}
}

func TestHandleReleaseTooManyTimes(t *testing.T) {
	h := NewHandle(nil)
	h.Release()

	defer func() {
		if recover() == nil {
			t.Error("releasing a freed handle must panic")
		}
	}()
	h.Release()
}

func TestHandleRetainReleased(t *testing.T) {
	h := NewHandle(nil)
	h.Release()

	defer func() {
		if recover() == nil {
			t.Error("retaining a freed handle must panic")
		}
	}()
	h.Retain()
}

func TestHandleIdentity(t *testing.T) {
	a, b := NewHandle(1), NewHandle(2)
	if a.ID() == b.ID() {
		t.Errorf("handles share the same id: %d", a.ID())
	}
	if a.Value() != 1 || b.Value() != 2 {
		t.Errorf("unexpected handle values: %v, %v", a.Value(), b.Value())
	}
	if s := (*Handle)(nil).String(); s != "coroutine#nil" {
		t.Errorf("unexpected string for nil handle: %q", s)
	}
}

func TestHandleConcurrentRefs(t *testing.T) {
	const goroutines = 16
	h := NewHandle(nil)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				h.Retain()
				h.Release()
			}
		}()
	}
	wg.Wait()

	if refs := h.Refs(); refs != 1 {
		t.Errorf("unbalanced reference count: got %d, want 1", refs)
	}
}
