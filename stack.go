package corostack

// Stack is the execution context stack of one worker.
//
// The stack records which coroutine is currently running on the worker. The
// scheduler pushes the handle of a coroutine immediately before transferring
// control to it, and pops it as soon as the coroutine suspends or completes.
// A coroutine may cause other coroutines to be resumed synchronously while it
// is running, in which case their frames nest on top of its own; the stack
// always restores the previous top when a nested activation pops.
//
// Each frame holds a reference on its handle, so a coroutine stays alive for
// as long as it is on the stack even if nothing else refers to it.
//
// The zero value is an empty stack ready to use. A Stack must only be used by
// the worker that owns it, it is not safe for concurrent use.
type Stack struct {
	frames []*Handle

	// Set on stacks created on demand by PushCoroutineStack, which are
	// unbound from their goroutine when they become empty.
	auto bool
}

// Current returns the handle of the coroutine on the top frame, or nil if the
// stack is empty.
func (s *Stack) Current() *Handle {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// HasCurrent returns true if a coroutine is active on the stack. It is
// equivalent to s.Current() != nil.
func (s *Stack) HasCurrent() bool {
	return len(s.frames) != 0
}

// Depth returns the number of frames on the stack.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Push takes a reference on h and makes it the top of the stack. The handle is
// returned to allow chaining.
//
// The same handle may be pushed multiple times; each push is an independent
// reference that is released by its matching Pop.
func (s *Stack) Push(h *Handle) *Handle {
	if h == nil {
		panic("corostack: push of nil coroutine handle")
	}
	s.frames = append(s.frames, h.Retain())
	return h
}

// Pop removes the top frame, releases the reference taken by the matching
// Push, and returns its handle. Calling Pop on an empty stack is a no-op which
// returns nil.
func (s *Stack) Pop() *Handle {
	if len(s.frames) == 0 {
		return nil
	}
	i := len(s.frames) - 1
	h := s.frames[i]
	s.frames[i] = nil
	s.frames = s.frames[:i]
	h.Release()
	return h
}

// Frames returns a snapshot of the handles on the stack, from the bottom
// frame to the top frame. No references are taken on the returned handles.
func (s *Stack) Frames() []*Handle {
	if len(s.frames) == 0 {
		return nil
	}
	return append([]*Handle(nil), s.frames...)
}

// Enter pushes h and returns a function which pops it. The returned function
// is meant to be deferred so the frame is removed on every exit path; calling
// it more than once has no effect.
//
//	defer stack.Enter(h)()
func (s *Stack) Enter(h *Handle) (exit func()) {
	s.Push(h)
	done := false
	return func() {
		if !done {
			done = true
			s.Pop()
		}
	}
}

// Run calls f with h as the current coroutine of the stack. The frame is
// popped when f returns, whether it returns normally, with an error, or by
// panicking.
func (s *Stack) Run(h *Handle, f func() error) error {
	s.Push(h)
	defer s.Pop()
	return f()
}

// Reset pops every frame of the stack, releasing their references.
func (s *Stack) Reset() {
	for s.HasCurrent() {
		s.Pop()
	}
}
