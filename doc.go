// Package corostack tracks which coroutine is currently executing on each
// worker.
//
// Every worker owns a Stack of coroutine handles. The scheduler pushes the
// handle of a coroutine immediately before resuming it and pops it when the
// coroutine suspends or completes, so runtime code such as completion
// callbacks and timers can ask for the current coroutine without having it
// passed through every call:
//
//	defer stack.Enter(h)()
//	resume(h)
//
// Stacks can be bound to a goroutine with Bind, after which the
// goroutine-bound functions CurrentCoroutine, HasCoroutine,
// PushCoroutineStack and PopCoroutineStack operate on it. Group runs a set of
// workers which each bind their own stack, and Coroutine implements
// goroutine-backed generators whose Next method maintains the stack of the
// goroutine that resumes them.
package corostack
