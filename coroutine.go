package corostack

import (
	"fmt"
	"runtime/debug"

	"github.com/dispatchrun/corostack/internal/gls"
)

// Coroutine instances expose APIs allowing the program to drive the execution
// of coroutines.
//
// The type parameter R represents the type of values that the program can
// receive from the coroutine (what it yields), and the type parameter S is
// what the program can send back to a coroutine yield point.
//
// While a coroutine executes, its handle is on top of the execution context
// stack of the goroutine that called Next, and CurrentCoroutine returns it from
// within the coroutine.
type Coroutine[R, S any] struct{ ctx *Context[R, S] }

// New creates a new coroutine which executes f as entry point.
//
// The coroutine holds one reference on its handle, released when it completes.
func New[R, S any](f func()) Coroutine[R, S] {
	c := &Context[R, S]{
		next: make(chan struct{}),
	}
	c.handle = NewHandle(c)

	go func() {
		g := gls.Context()

		defer func() {
			if v := recover(); v != nil {
				c.panic = &PanicError{Value: v, Stack: debug.Stack()}
			}
			c.done = true
			g.Clear()
			c.handle.Release()
			close(c.next)
		}()

		<-c.next
		g.Store(c.stack)

		if !c.stop {
			f()
		}
	}()

	return Coroutine[R, S]{ctx: c}
}

// Handle returns the handle of the coroutine.
func (c Coroutine[R, S]) Handle() *Handle { return c.ctx.handle }

// Context returns the context of the coroutine.
func (c Coroutine[R, S]) Context() *Context[R, S] { return c.ctx }

// Recv returns the last value that the coroutine has yielded. The method must
// be called only after a call to Next has returned true, or the return value is
// undefined. Calling the method multiple times after a call to Next returns the
// same value each time.
func (c Coroutine[R, S]) Recv() R { return c.ctx.recv }

// Send sets the value that will be seen by the coroutine after it resumes from
// a yield point. Calling the method multiple times before a call to Next does
// not result in sending multiple values, only the last value sent will be seen
// by the coroutine.
func (c Coroutine[R, S]) Send(v S) { c.ctx.send = v }

// Stop interrupts the coroutine. On the next call to Next, the coroutine will
// not return from its yield point; instead, it unwinds its call stack, calling
// each defer statement in the inverse order that they were declared.
//
// Stop is idempotent, calling it multiple times or after completion of the
// coroutine has no effect.
func (c Coroutine[R, S]) Stop() { c.ctx.stop = true }

// Done returns true if the coroutine completed, either because it was stopped,
// because its function returned, or because it panicked.
func (c Coroutine[R, S]) Done() bool { return c.ctx.done }

// Next executes the coroutine until its next yield point, or until completion.
// The method returns true if the coroutine entered a yield point, after which
// the program should call Recv to obtain the value that the coroutine yielded,
// and Send to set the value that will be returned from the yield point.
//
// The coroutine's handle is pushed on the execution context stack of the
// calling goroutine for the duration of the call. Coroutines resumed from
// within the coroutine nest on the same stack.
//
// If the coroutine panics, Next panics with a *PanicError after the handle
// was popped.
func (c Coroutine[R, S]) Next() bool {
	if c.ctx.done {
		return false
	}
	if c.ctx.active {
		// The coroutine's own goroutine is blocked in a yield point of a
		// nested activation, or this is the coroutine resuming itself;
		// neither can make progress.
		panic("corostack: " + c.ctx.handle.String() + " resumed while active")
	}

	PushCoroutineStack(c.ctx.handle)
	c.ctx.stack = Local()
	c.ctx.active = true
	defer func() {
		c.ctx.active = false
		c.ctx.stack = nil
		PopCoroutineStack()
	}()

	c.ctx.next <- struct{}{}
	if _, ok := <-c.ctx.next; ok {
		return true
	}
	if p := c.ctx.panic; p != nil {
		c.ctx.panic = nil
		panic(p)
	}
	return false
}

// Run executes a coroutine to completion, calling f for each value that the
// coroutine yields, and sending back each value that f returns.
func Run[R, S any](c Coroutine[R, S], f func(R) S) {
	// The coroutine is run to completion, but f might panic in which case we
	// don't want to leave it in an uncompleted state and interrupt it instead.
	defer func() {
		if !c.Done() {
			c.Stop()
			c.Next()
		}
	}()

	for c.Next() {
		r := c.Recv()
		s := f(r)
		c.Send(s)
	}
}

// Yield sends v to the generator and pauses the execution of the coroutine
// until the Next method is called on the associated generator.
//
// The function panics when called on a stack where no active coroutine exists,
// or if the type parameters do not match those of the coroutine.
func Yield[R, S any](v R) S {
	return LoadContext[R, S]().Yield(v)
}

// LoadContext returns the context for the current coroutine.
//
// The function panics when called on a stack where no active coroutine exists,
// or if the type parameters do not match those of the coroutine.
func LoadContext[R, S any]() *Context[R, S] {
	var v any
	if h := CurrentCoroutine(); h != nil {
		v = h.Value()
	}
	switch c := v.(type) {
	case *Context[R, S]:
		return c
	case nil:
		panic("corostack.LoadContext: not called from a coroutine stack")
	default:
		panic(fmt.Sprintf("corostack.LoadContext: coroutine type mismatch: %T", v))
	}
}

// PanicError is the value that Next panics with when the coroutine panicked.
type PanicError struct {
	// Value passed to panic by the coroutine.
	Value any
	// Stack trace of the coroutine goroutine at the time of the panic.
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("coroutine panic: %v\n\n%s", p.Value, p.Stack)
}

// Unwrap returns the panic value if it is an error.
func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}
