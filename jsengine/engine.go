// Package jsengine embeds a goja JavaScript runtime behind a
// single-owner execution actor. goja.Runtime is not goroutine-safe, so
// every runtime-touching operation is a message to one dedicated event
// loop goroutine; native code holds Value handles that are resolved
// through a generation-checked arena, making "touched a dead engine" a
// checked error instead of undefined behavior.
package jsengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"go.uber.org/zap"

	"github.com/joeycumines/goja-adblock/internal/goroutineid"
)

// DefaultSyncTimeout bounds how long a synchronous operation waits for
// the event loop before giving up.
const DefaultSyncTimeout = 5 * time.Second

// Engine owns one embedded JavaScript runtime for its lifetime. At most
// one Engine exists per Platform; every Value created by the engine is
// invalidated the instant the engine is closed.
type Engine struct {
	loop     *eventloop.EventLoop
	registry *require.Registry
	log      *zap.Logger

	// vm is the loop's runtime. Captured once at startup; only ever
	// touched on the loop goroutine.
	vm *goja.Runtime

	// current is the innermost entered execution context. Loop-goroutine
	// confined; no lock.
	current *Context

	handles *arena

	loopGoroutineID atomic.Int64

	timeout time.Duration

	mu      sync.RWMutex
	started bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithRegistry supplies an existing require.Registry, letting callers
// share native module registrations across engines.
func WithRegistry(registry *require.Registry) Option {
	return func(e *Engine) {
		if registry != nil {
			e.registry = registry
		}
	}
}

// WithSyncTimeout sets the timeout for synchronous operations. Zero
// disables the timeout.
func WithSyncTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New creates an Engine with a started event loop. The provided context
// controls lifecycle: when it is canceled the engine closes.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		log:     zap.NewNop(),
		handles: newArena(),
		timeout: DefaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = require.NewRegistry()
	}

	e.loop = eventloop.NewEventLoop(
		eventloop.WithRegistry(e.registry),
		eventloop.EnableConsole(true),
	)

	// Internal lifecycle context, independent of the parent so shutdown
	// ordering stays in our hands.
	childCtx, cancel := context.WithCancel(context.Background())
	e.ctx = childCtx
	e.cancel = cancel

	e.loop.Start()
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()

	ready := make(chan struct{})
	ok := e.loop.RunOnLoop(func(vm *goja.Runtime) {
		e.vm = vm
		e.loopGoroutineID.Store(goroutineid.Get())
		close(ready)
	})
	if !ok {
		cancel()
		e.loop.Stop()
		return nil, errors.New("jsengine: event loop not running")
	}
	<-ready

	if ctx != nil && ctx.Done() != nil {
		context.AfterFunc(ctx, func() {
			_ = e.Close()
		})
	}

	return e, nil
}

// Registry returns the require.Registry used for native modules.
func (e *Engine) Registry() *require.Registry {
	return e.registry
}

// Close stops the event loop and invalidates every outstanding handle.
// Safe to call multiple times.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.loop.Stop()

	if leaked := e.handles.dispose(); leaked > 0 {
		// Outstanding handles are abandoned rather than released against
		// a stopped engine.
		e.log.Debug("engine closed with live handles", zap.Int("count", leaked))
	}
	return nil
}

// Done returns a channel closed when the engine has been closed.
func (e *Engine) Done() <-chan struct{} {
	return e.ctx.Done()
}

// IsRunning reports whether the engine accepts work.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started && !e.closed
}

// run executes fn with exclusive access to the runtime. When called
// from the loop goroutine itself (a native callback invoked by script),
// fn runs directly; otherwise it is posted to the loop and awaited.
func (e *Engine) run(fn func(vm *goja.Runtime) error) error {
	e.mu.RLock()
	if !e.started || e.closed {
		e.mu.RUnlock()
		return disposedError()
	}
	timeout := e.timeout
	e.mu.RUnlock()

	if id := e.loopGoroutineID.Load(); id > 0 && id == goroutineid.Get() {
		return fn(e.vm)
	}

	errCh := make(chan error, 1)
	ok := e.loop.RunOnLoop(func(vm *goja.Runtime) {
		errCh <- fn(vm)
	})
	if !ok {
		return disposedError()
	}

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case err := <-errCh:
			return err
		case <-e.ctx.Done():
			return disposedError()
		case <-timer.C:
			return fmt.Errorf("jsengine: operation timed out after %v", timeout)
		}
	}

	select {
	case err := <-errCh:
		return err
	case <-e.ctx.Done():
		return disposedError()
	}
}

// scoped runs fn inside a freshly entered execution context.
func (e *Engine) scoped(fn func(vm *goja.Runtime) error) error {
	return e.run(func(vm *goja.Runtime) error {
		ctx := e.enterContext()
		defer ctx.Exit()
		return fn(vm)
	})
}

// Evaluate compiles and runs source in the engine, returning a handle
// to the result. Script exceptions surface as KindScriptError.
func (e *Engine) Evaluate(name, source string) (*Value, error) {
	var result *Value
	err := e.scoped(func(vm *goja.Runtime) error {
		prg, err := goja.Compile(name, source, true)
		if err != nil {
			return scriptError(fmt.Sprintf("failed to compile %s: %v", name, err), "", err)
		}
		v, err := vm.RunProgram(prg)
		if err != nil {
			return asScriptError(err)
		}
		result = e.wrap(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// NewValue converts a native value to a runtime value and returns a
// handle to it.
func (e *Engine) NewValue(value any) (*Value, error) {
	var result *Value
	err := e.scoped(func(vm *goja.Runtime) error {
		result = e.wrap(vm.ToValue(value))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// NewObject creates an empty runtime object and returns a handle to it.
func (e *Engine) NewObject() (*Value, error) {
	var result *Value
	err := e.scoped(func(vm *goja.Runtime) error {
		result = e.wrap(vm.NewObject())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetGlobal binds a native value (function maps included) as a global
// in the runtime.
func (e *Engine) SetGlobal(name string, value any) error {
	return e.scoped(func(vm *goja.Runtime) error {
		return vm.Set(name, value)
	})
}

// GetGlobal returns a handle to a global. A missing global yields an
// undefined handle, matching runtime semantics.
func (e *Engine) GetGlobal(name string) (*Value, error) {
	var result *Value
	err := e.scoped(func(vm *goja.Runtime) error {
		v := vm.Get(name)
		if v == nil {
			v = goja.Undefined()
		}
		result = e.wrap(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Schedule posts fn to the event loop without waiting. Used to re-enter
// the runtime from collaborator callbacks that complete on arbitrary
// goroutines. Returns false once the engine is closed.
func (e *Engine) Schedule(fn func(vm *goja.Runtime)) bool {
	e.mu.RLock()
	if !e.started || e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()
	return e.loop.RunOnLoop(fn)
}

// wrap pins v in the arena and returns a handle. Must be called on the
// loop goroutine. Returns an invalid handle once the arena is disposed;
// any later operation on it reports KindEngineDisposed.
func (e *Engine) wrap(v goja.Value) *Value {
	if v == nil {
		v = goja.Undefined()
	}
	ref, _ := e.handles.alloc(v)
	return &Value{eng: e, ref: ref}
}

// asScriptError maps an error returned by goja into the error taxonomy.
func asScriptError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return scriptError(exceptionMessage(ex), ex.String(), err)
	}
	var je *Error
	if errors.As(err, &je) {
		return je
	}
	return scriptError(err.Error(), "", err)
}

// exceptionMessage extracts the thrown value's message text.
func exceptionMessage(ex *goja.Exception) (msg string) {
	defer func() {
		if recover() != nil {
			msg = ex.Error()
		}
	}()
	v := ex.Value()
	if v == nil {
		return ex.Error()
	}
	if obj, ok := v.(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			return m.String()
		}
	}
	return v.String()
}
