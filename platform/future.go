package platform

import (
	"sync"

	"github.com/joeycumines/goja-adblock/filterengine"
)

// OnFilterEngineCreated is notified exactly once per registration with
// the constructed engine, or with the construction error.
type OnFilterEngineCreated func(engine *filterengine.FilterEngine, err error)

// engineFuture is a one-shot shared future for the constructed filter
// engine. Callbacks attached before resolution fire in attach order
// when the future resolves; callbacks attached afterwards fire inline.
type engineFuture struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	engine    *filterengine.FilterEngine
	err       error
	callbacks []OnFilterEngineCreated
}

func newEngineFuture() *engineFuture {
	return &engineFuture{done: make(chan struct{})}
}

// attach registers cb. If the future is already resolved the callback
// runs inline before attach returns.
func (f *engineFuture) attach(cb OnFilterEngineCreated) {
	if cb == nil {
		return
	}
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	engine, err := f.engine, f.err
	f.mu.Unlock()
	cb(engine, err)
}

// resolve settles the future and returns the callbacks to notify, in
// attach order. Resolving twice is a programming error.
func (f *engineFuture) resolve(engine *filterengine.FilterEngine, err error) []OnFilterEngineCreated {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved {
		panic("platform: engine future resolved twice")
	}
	f.resolved = true
	f.engine = engine
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	return callbacks
}

// isResolved reports whether the future has settled.
func (f *engineFuture) isResolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}

// wait blocks until the future resolves.
func (f *engineFuture) wait() (*filterengine.FilterEngine, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engine, f.err
}
