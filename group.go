package corostack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned when submitting a task to a group after Wait was
// called.
var ErrClosed = errors.New("corostack: group is closed")

// Option configures a Group.
type Option func(*group)

// WithWorkers sets the number of workers of a group. It defaults to
// runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(g *group) { g.workers = n }
}

// WithQueueSize sets the number of tasks that can be submitted to a group
// before Go blocks waiting for a worker to pick one up.
func WithQueueSize(n int) Option {
	return func(g *group) { g.queueSize = n }
}

// WithLogger sets the logger that a group reports worker and task failures
// to. Nothing is logged by default.
func WithLogger(logger *log.Logger) Option {
	return func(g *group) { g.logger = logger }
}

type group struct {
	workers   int
	queueSize int
	logger    *log.Logger
}

type task struct {
	handle *Handle
	fn     func(context.Context) error
}

// Group is a set of workers executing coroutine activations.
//
// Each worker runs on its own locked OS thread and owns an execution context
// stack, which is bound to the worker goroutine so CurrentCoroutine and the
// other goroutine-bound functions observe the task being executed. Stacks of
// different workers never interact.
type Group struct {
	group
	ctx   context.Context
	eg    *errgroup.Group
	tasks chan task

	mutex   sync.Mutex
	closed  bool
	senders sync.WaitGroup
}

// NewGroup starts a group of workers. The workers stop picking up tasks when
// ctx is canceled or a task returns an error.
func NewGroup(ctx context.Context, options ...Option) *Group {
	g := &Group{
		group: group{
			workers: runtime.GOMAXPROCS(0),
			logger:  log.New(io.Discard, "", 0),
		},
	}
	for _, option := range options {
		option(&g.group)
	}
	if g.workers < 1 {
		g.workers = 1
	}
	if g.queueSize < 0 {
		g.queueSize = 0
	}

	g.eg, g.ctx = errgroup.WithContext(ctx)
	g.tasks = make(chan task, g.queueSize)

	for i := 0; i < g.workers; i++ {
		id := i
		g.eg.Go(func() error { return g.work(id) })
	}
	return g
}

// Go submits fn to be executed by one of the workers, with h as the current
// coroutine. The group takes a reference on h which it releases after fn
// returned. Errors returned by fn are wrapped with the identity of h.
//
// Go blocks if the queue is full, and returns an error if the group is closed
// or its context was canceled. A task may submit to its own group, but when
// every worker is busy and the queue is full the submission blocks until the
// context is canceled.
func (g *Group) Go(h *Handle, fn func(context.Context) error) error {
	if h == nil {
		panic("corostack: nil coroutine handle submitted to group")
	}

	g.mutex.Lock()
	if g.closed {
		g.mutex.Unlock()
		return ErrClosed
	}
	g.senders.Add(1)
	g.mutex.Unlock()
	defer g.senders.Done()

	if g.ctx.Err() != nil {
		return context.Cause(g.ctx)
	}
	t := task{handle: h.Retain(), fn: fn}
	select {
	case g.tasks <- t:
		return nil
	case <-g.ctx.Done():
		h.Release()
		return context.Cause(g.ctx)
	}
}

// Wait closes the group and waits for all submitted tasks to complete. It
// returns the first error returned by a task, or the cause of the context
// cancellation if tasks accepted by Go were dropped without running.
func (g *Group) Wait() error {
	g.mutex.Lock()
	closing := !g.closed
	g.closed = true
	g.mutex.Unlock()

	if closing {
		// Submissions in flight complete before the queue is closed; the
		// workers are still consuming it, or the context is canceled.
		g.senders.Wait()
		close(g.tasks)
	}
	err := g.eg.Wait()
	if g.drain() > 0 && err == nil {
		err = context.Cause(g.ctx)
	}
	return err
}

func (g *Group) work(id int) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var stack Stack
	defer Bind(&stack)()

	for {
		select {
		case t, ok := <-g.tasks:
			if !ok {
				return nil
			}
			if g.ctx.Err() != nil {
				t.handle.Release()
				return g.cancel(id, 1+g.drain())
			}
			if err := g.exec(&stack, t); err != nil {
				g.logger.Printf("worker %d: %v", id, err)
				g.drain()
				return err
			}
		case <-g.ctx.Done():
			return g.cancel(id, g.drain())
		}
	}
}

// cancel is called when a worker observes the cancellation of the group's
// context, after it dropped the given number of queued tasks.
func (g *Group) cancel(id, dropped int) error {
	if dropped == 0 {
		return nil
	}
	err := fmt.Errorf("%d tasks dropped: %w", dropped, context.Cause(g.ctx))
	g.logger.Printf("worker %d: %v", id, err)
	return err
}

func (g *Group) exec(stack *Stack, t task) error {
	defer t.handle.Release()
	err := stack.Run(t.handle, func() error { return t.fn(g.ctx) })
	if stack.HasCurrent() {
		// A task pushed frames that it did not pop; the stack cannot be
		// trusted for the next task.
		depth := stack.Depth()
		stack.Reset()
		return fmt.Errorf("%s: left %d frames on the execution context stack", t.handle, depth)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", t.handle, err)
	}
	return nil
}

// drain releases the references held by tasks which will never run, and
// returns how many were dropped. Only tasks that are already queued are
// drained, Go may still be blocked trying to submit until the context
// cancellation is observed.
func (g *Group) drain() (n int) {
	for {
		select {
		case t, ok := <-g.tasks:
			if !ok {
				return n
			}
			t.handle.Release()
			n++
		default:
			return n
		}
	}
}
