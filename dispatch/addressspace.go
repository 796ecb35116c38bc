// Package dispatch implements the OSC address space: a thread-safe registry
// mapping pattern strings to handler callbacks, with an exact-match fast
// path and bundle recursion (spec.md §4.4).
package dispatch

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lumenstage/osc"
	"github.com/lumenstage/osc/pattern"
)

// Handler receives a decoded Message matched by a registered pattern. It
// must not block; handlers run synchronously on the dispatching goroutine
// (spec.md §4.4).
type Handler func(msg *osc.Message)

// Handle is an opaque registration handle returned by Register. Passing it
// to Unregister detaches that specific handler; unregistering twice is a
// no-op.
type Handle uint64

type registration struct {
	handle  Handle
	pattern string
	handler Handler
}

// AddressSpace is a thread-safe mapping from pattern string to handler set.
// Exact (meta-character-free) patterns are indexed for O(1) lookup;
// wildcard patterns are scanned linearly on every dispatch (spec.md §4.4).
type AddressSpace struct {
	mu       sync.Mutex
	nextID   atomic.Uint64
	exact    map[string][]registration
	wildcard []registration
}

// New constructs an empty AddressSpace.
func New() *AddressSpace {
	return &AddressSpace{exact: make(map[string][]registration)}
}

// Register adds h under pattern p and returns a handle for later removal.
// p is classified as exact when it contains none of the OSC meta
// characters ('?', '*', '[', ']', '{', '}'); otherwise it is treated as a
// wildcard pattern.
func (a *AddressSpace) Register(p string, h Handler) Handle {
	id := Handle(a.nextID.Add(1))
	reg := registration{handle: id, pattern: p, handler: h}

	a.mu.Lock()
	defer a.mu.Unlock()
	if isExact(p) {
		a.exact[p] = append(a.exact[p], reg)
	} else {
		a.wildcard = append(a.wildcard, reg)
	}
	return id
}

// Unregister removes the handler registered under handle. It is idempotent:
// removing a handle that is unknown, or already removed, is a no-op.
func (a *AddressSpace) Unregister(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for p, regs := range a.exact {
		if i := indexOfHandle(regs, h); i >= 0 {
			a.exact[p] = append(regs[:i:i], regs[i+1:]...)
			if len(a.exact[p]) == 0 {
				delete(a.exact, p)
			}
			return
		}
	}
	if i := indexOfHandle(a.wildcard, h); i >= 0 {
		a.wildcard = append(a.wildcard[:i:i], a.wildcard[i+1:]...)
	}
}

func indexOfHandle(regs []registration, h Handle) int {
	for i, r := range regs {
		if r.handle == h {
			return i
		}
	}
	return -1
}

func isExact(p string) bool {
	return !strings.ContainsAny(p, "?*[]{}")
}

// Dispatch delivers packet pkt: a Message is matched directly, a Bundle is
// recursed into (its elements dispatched in order, spec.md §4.4). It
// returns the total number of handler invocations performed.
func (a *AddressSpace) Dispatch(pkt osc.Packet) int {
	switch p := pkt.(type) {
	case *osc.Message:
		return a.dispatchMessage(p)
	case *osc.Bundle:
		n := 0
		for _, elem := range p.Elements {
			n += a.Dispatch(elem)
		}
		return n
	default:
		return 0
	}
}

// dispatchMessage snapshots the matching handlers under the lock, then
// invokes them outside it: a re-entrant Register during dispatch is not
// observed by this dispatch, and a concurrent Unregister still lets an
// already-snapshotted handler fire (spec.md §4.4, §9).
func (a *AddressSpace) dispatchMessage(msg *osc.Message) int {
	a.mu.Lock()
	exact := append([]registration(nil), a.exact[msg.Address]...)
	wild := append([]registration(nil), a.wildcard...)
	a.mu.Unlock()

	n := 0
	for _, r := range exact {
		invoke(r.handler, msg)
		n++
	}
	for _, r := range wild {
		if pattern.Match(r.pattern, msg.Address) {
			invoke(r.handler, msg)
			n++
		}
	}
	return n
}

// invoke isolates a single handler's panic so that one failing handler does
// not prevent the remaining snapshotted handlers from running (spec.md
// §4.4's "handler failures are isolated" contract).
func invoke(h Handler, msg *osc.Message) {
	defer func() { recover() }()
	h(msg)
}
