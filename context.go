package corostack

import (
	"runtime"

	"github.com/dispatchrun/corostack/internal/gls"
)

// Context is the state of a coroutine, it is the value carried by the
// coroutine's handle.
type Context[R, S any] struct {
	// Value passed to Yield when a coroutine yields control back to its caller,
	// and value returned to the coroutine when the caller resumes it.
	//
	// Keep as first fields so they don't use any space if they are the empty
	// struct.
	recv R
	send S

	next   chan struct{}
	handle *Handle

	// Execution context stack of the goroutine that resumed the coroutine,
	// bound to the coroutine goroutine while it runs.
	stack *Stack

	panic *PanicError

	// Booleans managing the completion state of the coroutine.
	active bool
	done   bool
	stop   bool
}

// Handle returns the handle of the coroutine.
func (c *Context[R, S]) Handle() *Handle { return c.handle }

// Yield sends v to the caller of Next and pauses the execution of the
// coroutine until Next is called again.
func (c *Context[R, S]) Yield(v R) S {
	if c.stop {
		panic("cannot yield from a coroutine that has been stopped")
	}
	var zero S
	c.send = zero
	c.recv = v
	c.next <- struct{}{}
	<-c.next
	// The coroutine may be resumed from another goroutine than the one which
	// resumed it last, pick up its stack.
	gls.Context().Store(c.stack)
	if c.stop {
		runtime.Goexit()
	}
	return c.send
}
