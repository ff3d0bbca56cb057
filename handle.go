package corostack

import (
	"strconv"
	"sync/atomic"
)

var lastHandleID atomic.Uint64

// Handle is the reference counted identity of a coroutine.
//
// A handle is shared by the scheduler, the execution context stacks on which
// it is active, and any other part of the program that needs to name the
// coroutine. Each owner holds one reference; the handle is freed when the last
// reference is released, at which point its release hook runs.
//
// The reference count is safe for concurrent use, a handle may be retained and
// released from any goroutine.
type Handle struct {
	id    uint64
	value any
	refs  atomic.Int64
	free  func(*Handle)
}

// HandleOption configures a Handle created by NewHandle.
type HandleOption func(*Handle)

// OnRelease sets a function called exactly once, when the last reference to
// the handle is released.
func OnRelease(f func(*Handle)) HandleOption {
	return func(h *Handle) { h.free = f }
}

// NewHandle creates a handle carrying value. The returned handle holds one
// reference owned by the caller.
func NewHandle(value any, options ...HandleOption) *Handle {
	h := &Handle{
		id:    lastHandleID.Add(1),
		value: value,
	}
	h.refs.Store(1)
	for _, option := range options {
		option(h)
	}
	return h
}

// ID returns the process-unique identifier of the handle.
func (h *Handle) ID() uint64 { return h.id }

// Value returns the value that the handle was created with.
func (h *Handle) Value() any { return h.value }

// Refs returns the number of references currently held on the handle.
func (h *Handle) Refs() int64 { return h.refs.Load() }

// Alive returns true if at least one reference is held on the handle.
func (h *Handle) Alive() bool { return h.refs.Load() > 0 }

// Retain takes an additional reference on the handle and returns it.
//
// The method panics if the handle was already freed.
func (h *Handle) Retain() *Handle {
	for {
		n := h.refs.Load()
		if n <= 0 {
			panic("corostack: retain of released " + h.String())
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return h
		}
	}
}

// Release drops one reference on the handle, and returns true if it was the
// last one.
//
// The method panics if the handle was already freed, which indicates that a
// release is not matched by a prior retain.
func (h *Handle) Release() bool {
	switch n := h.refs.Add(-1); {
	case n > 0:
		return false
	case n == 0:
		if h.free != nil {
			h.free(h)
		}
		return true
	default:
		panic("corostack: too many releases of " + h.String())
	}
}

// String returns a short representation of the handle, "coroutine#<id>".
func (h *Handle) String() string {
	if h == nil {
		return "coroutine#nil"
	}
	return "coroutine#" + strconv.FormatUint(h.id, 10)
}
