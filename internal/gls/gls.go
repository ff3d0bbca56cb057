// Package gls implements goroutine local storage.
//
// The storage holds at most one value per goroutine, keyed by goroutine id.
// Ids are never reused, so a goroutine always starts with no value. Values are
// not removed when goroutines exit: the owner of an entry must Clear it before
// the goroutine returns, or the entry is leaked.
package gls

import (
	"sync"

	"github.com/petermattis/goid"
)

// The state is spread over 64 buckets, each with its own mutex, so goroutines
// running on different threads rarely contend on the same lock. The bucket is
// selected by hashing the goroutine id, ids of goroutines started together are
// consecutive.
const shards = 64

type shard struct {
	mutex sync.Mutex
	state map[G]any
	_     [48]byte // keep shards on separate cache lines
}

var gstate [shards]shard

// G is a reference to a goroutine, and provides a way
// to load, store and clear a goroutine local context.
type G int64

// Context retrieves the goroutine local storage for contexts.
func Context() G {
	return G(goid.Get())
}

func (g G) shard() *shard {
	return &gstate[(uint64(g)*0x9E3779B97F4A7C15)>>58]
}

// Load loads the goroutine local context.
func (g G) Load() any {
	s := g.shard()
	s.mutex.Lock()
	v := s.state[g]
	s.mutex.Unlock()
	return v
}

// Store stores the goroutine local context.
func (g G) Store(c any) {
	s := g.shard()
	s.mutex.Lock()
	if s.state == nil {
		s.state = make(map[G]any)
	}
	s.state[g] = c
	s.mutex.Unlock()
}

// Swap stores c as the goroutine local context and returns the previous one.
// Storing nil clears the entry.
func (g G) Swap(c any) (old any) {
	s := g.shard()
	s.mutex.Lock()
	old = s.state[g]
	if c == nil {
		delete(s.state, g)
	} else {
		if s.state == nil {
			s.state = make(map[G]any)
		}
		s.state[g] = c
	}
	s.mutex.Unlock()
	return old
}

// Clear clears the goroutine local context.
func (g G) Clear() {
	s := g.shard()
	s.mutex.Lock()
	delete(s.state, g)
	s.mutex.Unlock()
}

// Len returns the number of goroutines with a local context, including
// entries leaked by goroutines which exited without clearing theirs.
func Len() (n int) {
	for i := range gstate {
		s := &gstate[i]
		s.mutex.Lock()
		n += len(s.state)
		s.mutex.Unlock()
	}
	return n
}
