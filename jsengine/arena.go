package jsengine

import (
	"sync"

	"github.com/dop251/goja"
)

// handleRef identifies a live slot in the handle arena. The generation
// counter makes references to freed or disposed slots a checked error
// rather than a dangling pointer.
type handleRef struct {
	slot uint32
	gen  uint64
}

// arena owns the persistent references held by native code. Every Value
// is a slot index plus a generation; disposing the arena atomically
// invalidates every outstanding handle.
type arena struct {
	mu       sync.Mutex
	disposed bool
	slots    []arenaSlot
	free     []uint32
}

type arenaSlot struct {
	val  goja.Value
	gen  uint64
	live bool
}

func newArena() *arena {
	return &arena{}
}

// alloc pins v and returns a reference to it. ok is false once the
// arena is disposed.
func (a *arena) alloc(v goja.Value) (ref handleRef, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return handleRef{}, false
	}
	var slot uint32
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, arenaSlot{})
		slot = uint32(len(a.slots) - 1)
	}
	s := &a.slots[slot]
	s.val = v
	s.live = true
	return handleRef{slot: slot, gen: s.gen}, true
}

// get resolves ref to its pinned value.
func (a *arena) get(ref handleRef) (goja.Value, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return nil, disposedError()
	}
	if int(ref.slot) >= len(a.slots) {
		return nil, releasedError()
	}
	s := &a.slots[ref.slot]
	if !s.live || s.gen != ref.gen {
		return nil, releasedError()
	}
	return s.val, nil
}

// release frees the slot behind ref. Releasing an already-released
// reference is a no-op, as is releasing after dispose: once the engine
// is gone there is nothing safe to free, so the reference is abandoned.
func (a *arena) release(ref handleRef) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	if int(ref.slot) >= len(a.slots) {
		return
	}
	s := &a.slots[ref.slot]
	if !s.live || s.gen != ref.gen {
		return
	}
	s.val = nil
	s.live = false
	s.gen++
	a.free = append(a.free, ref.slot)
}

// dispose invalidates every outstanding handle and returns how many
// were still live.
func (a *arena) dispose() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return 0
	}
	a.disposed = true
	live := 0
	for i := range a.slots {
		if a.slots[i].live {
			live++
		}
	}
	a.slots = nil
	a.free = nil
	return live
}
