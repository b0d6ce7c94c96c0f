// Package platform assembles the embedded runtime, the serial executor
// and the host-supplied collaborators into one owning facade, and
// manages the asynchronous, exactly-once construction of the filter
// engine.
package platform

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joeycumines/goja-adblock/executor"
	"github.com/joeycumines/goja-adblock/filterengine"
	"github.com/joeycumines/goja-adblock/jsengine"
)

//go:embed bootstrap.js
var bootstrapScript string

var (
	// ErrAlreadyInitialized is returned by SetUp when the platform's
	// engine already exists.
	ErrAlreadyInitialized = errors.New("platform: already initialized")
	// ErrNotInitialized is returned by operations that require SetUp to
	// have been called first.
	ErrNotInitialized = errors.New("platform: not initialized")
	// ErrConstructionFailed wraps the error captured during filter
	// engine construction. Every waiter observes the same wrapped error.
	ErrConstructionFailed = errors.New("platform: filter engine construction failed")
)

// CreationParameters configures a Platform. Zero-value fields get
// working defaults; the platform takes ownership of the executor and
// stops it on Close.
type CreationParameters struct {
	Executor   executor.Executor
	FileSystem FileSystem
	WebRequest WebRequest
	Timer      Timer
	Logger     *zap.Logger
}

// Platform owns a single Engine and the collaborators bound into it.
// All methods are safe for concurrent use.
type Platform struct {
	log  *zap.Logger
	id   string
	exec executor.Executor

	fileSystem FileSystem
	webRequest WebRequest
	timer      Timer

	sources *evaluatedSourceSet

	// mu guards engine and future. It is held only for pointer reads
	// and writes, never across construction or evaluation.
	mu     sync.Mutex
	engine *jsengine.Engine
	future *engineFuture
	closed bool
}

// New creates a Platform. The runtime does not exist until SetUp.
func New(params CreationParameters) *Platform {
	p := &Platform{
		log:        params.Logger,
		id:         uuid.NewString(),
		exec:       params.Executor,
		fileSystem: params.FileSystem,
		webRequest: params.WebRequest,
		timer:      params.Timer,
		sources:    newEvaluatedSourceSet(),
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	p.log = p.log.With(zap.String("platform_id", p.id))
	if p.exec == nil {
		p.exec = executor.NewSerial(p.log)
	}
	if p.fileSystem == nil {
		p.fileSystem = NewMapFileSystem(p.exec)
	}
	if p.webRequest == nil {
		p.webRequest = NoopWebRequest{}
	}
	if p.timer == nil {
		p.timer = NewExecutorTimer(p.exec)
	}
	return p
}

// ID returns the platform's unique instance identifier.
func (p *Platform) ID() string {
	return p.id
}

// SetUp creates the engine, binds the collaborator bridges into the
// runtime and evaluates the bootstrap script. Calling SetUp twice
// returns ErrAlreadyInitialized; the existing engine is untouched.
func (p *Platform) SetUp(appInfo AppInfo, opts ...jsengine.Option) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrNotInitialized
	}
	if p.engine != nil {
		p.mu.Unlock()
		return ErrAlreadyInitialized
	}
	p.mu.Unlock()

	engineOpts := append([]jsengine.Option{jsengine.WithLogger(p.log)}, opts...)
	eng, err := jsengine.New(context.Background(), engineOpts...)
	if err != nil {
		return fmt.Errorf("platform: creating engine: %w", err)
	}

	if err := p.bindCollaborators(eng, appInfo); err != nil {
		_ = eng.Close()
		return err
	}
	v, err := eng.Evaluate("bootstrap.js", bootstrapScript)
	if err != nil {
		_ = eng.Close()
		return fmt.Errorf("platform: evaluating bootstrap script: %w", err)
	}
	v.Release()

	p.mu.Lock()
	if p.engine != nil || p.closed {
		// Lost a SetUp race; discard our engine.
		p.mu.Unlock()
		_ = eng.Close()
		return ErrAlreadyInitialized
	}
	p.engine = eng
	p.mu.Unlock()

	// Recorded only by the winning SetUp, so a later Evaluate of the
	// same source is a no-op against the live engine.
	p.sources.record(sourceID("bootstrap.js", bootstrapScript))

	p.log.Info("platform initialized",
		zap.String("app", appInfo.Name),
		zap.String("app_version", appInfo.Version))
	return nil
}

// Engine returns the platform's engine, or nil before SetUp.
func (p *Platform) Engine() *jsengine.Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine
}

// Evaluate runs a script source through the evaluated-source registry:
// a source already evaluated (same name and content) is skipped. It is
// the EvaluateFunc handed to filter engine construction.
func (p *Platform) Evaluate(name, source string) error {
	p.mu.Lock()
	eng := p.engine
	p.mu.Unlock()
	if eng == nil {
		return ErrNotInitialized
	}
	return p.sources.evaluateOnce(sourceID(name, source), func() error {
		v, err := eng.Evaluate(name, source)
		if err != nil {
			return err
		}
		v.Release()
		return nil
	})
}

// CreateFilterEngineAsync requests filter engine construction. The
// first call dispatches the work to the executor; every call attaches
// onCreated, which fires exactly once with the shared outcome, inline
// if the outcome is already known. params is only consulted by the
// call that triggers construction. Fails with ErrNotInitialized before
// SetUp and after Close.
func (p *Platform) CreateFilterEngineAsync(params filterengine.CreationParameters, onCreated OnFilterEngineCreated) error {
	p.mu.Lock()
	if p.engine == nil || p.closed {
		p.mu.Unlock()
		return ErrNotInitialized
	}
	future := p.future
	if future == nil {
		future = newEngineFuture()
		p.future = future
		eng := p.engine
		p.log.Debug("dispatching filter engine construction")
		p.exec.Dispatch(func() {
			fe, err := filterengine.New(eng, params, p.Evaluate, p.log)
			if err != nil {
				p.log.Error("filter engine construction failed", zap.Error(err))
				err = fmt.Errorf("%w: %w", ErrConstructionFailed, err)
				fe = nil
			}
			// Callbacks attached before resolution run here on the
			// executor goroutine, in attach order.
			for _, cb := range future.resolve(fe, err) {
				cb(fe, err)
			}
		})
	}
	p.mu.Unlock()

	future.attach(onCreated)
	return nil
}

// GetFilterEngine blocks until the filter engine is constructed,
// triggering construction with default parameters if nothing has yet.
// A captured construction failure is returned to every caller. Fails
// with ErrNotInitialized before SetUp and after Close.
func (p *Platform) GetFilterEngine() (*filterengine.FilterEngine, error) {
	p.mu.Lock()
	if p.engine == nil || p.closed {
		p.mu.Unlock()
		return nil, ErrNotInitialized
	}
	future := p.future
	p.mu.Unlock()

	if future == nil {
		if err := p.CreateFilterEngineAsync(filterengine.CreationParameters{}, nil); err != nil {
			return nil, err
		}
		p.mu.Lock()
		future = p.future
		p.mu.Unlock()
	}
	return future.wait()
}

// Close stops the executor and the engine. In-flight filter engine
// construction either completes first or is abandoned; abandoned
// waiters are failed rather than left blocked. Safe to call twice.
func (p *Platform) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	eng := p.engine
	future := p.future
	p.mu.Unlock()

	// Stop joins the worker, so after this no construction task can
	// race the resolution below.
	p.exec.Stop()
	if future != nil && !future.isResolved() {
		err := fmt.Errorf("%w: platform closed before construction ran", ErrConstructionFailed)
		for _, cb := range future.resolve(nil, err) {
			cb(nil, err)
		}
	}

	if eng != nil {
		if err := eng.Close(); err != nil {
			return err
		}
	}
	p.log.Info("platform closed")
	return nil
}

// bindCollaborators exposes the collaborators to script as the
// _appInfo, _fileSystem, _webRequest and _timer globals. Completions
// arriving on collaborator goroutines are marshalled back onto the
// runtime's event loop before any script callback runs.
func (p *Platform) bindCollaborators(eng *jsengine.Engine, appInfo AppInfo) error {
	if err := eng.SetGlobal("_appInfo", map[string]string{
		"name":               appInfo.Name,
		"version":            appInfo.Version,
		"application":        appInfo.Application,
		"applicationVersion": appInfo.ApplicationVersion,
		"locale":             appInfo.Locale,
	}); err != nil {
		return fmt.Errorf("platform: binding _appInfo: %w", err)
	}

	invoke := func(what string, cb goja.Callable, args func(vm *goja.Runtime) []goja.Value) {
		ok := eng.Schedule(func(vm *goja.Runtime) {
			if _, err := cb(goja.Undefined(), args(vm)...); err != nil {
				p.log.Warn("collaborator callback threw", zap.String("bridge", what), zap.Error(err))
			}
		})
		if !ok {
			p.log.Debug("dropping collaborator completion, engine closed", zap.String("bridge", what))
		}
	}

	if err := eng.SetGlobal("_fileSystem", map[string]any{
		"read": func(name string, cb goja.Callable) {
			p.fileSystem.Read(name, func(data []byte, errText string) {
				invoke("fileSystem.read", cb, func(vm *goja.Runtime) []goja.Value {
					return []goja.Value{vm.ToValue(string(data)), vm.ToValue(errText)}
				})
			})
		},
		"write": func(name, data string, cb goja.Callable) {
			p.fileSystem.Write(name, []byte(data), func(errText string) {
				invoke("fileSystem.write", cb, func(vm *goja.Runtime) []goja.Value {
					return []goja.Value{vm.ToValue(errText)}
				})
			})
		},
		"move": func(from, to string, cb goja.Callable) {
			p.fileSystem.Move(from, to, func(errText string) {
				invoke("fileSystem.move", cb, func(vm *goja.Runtime) []goja.Value {
					return []goja.Value{vm.ToValue(errText)}
				})
			})
		},
		"remove": func(name string, cb goja.Callable) {
			p.fileSystem.Remove(name, func(errText string) {
				invoke("fileSystem.remove", cb, func(vm *goja.Runtime) []goja.Value {
					return []goja.Value{vm.ToValue(errText)}
				})
			})
		},
	}); err != nil {
		return fmt.Errorf("platform: binding _fileSystem: %w", err)
	}

	if err := eng.SetGlobal("_webRequest", map[string]any{
		"get": func(url string, headers map[string]string, cb goja.Callable) {
			p.webRequest.GET(url, headers, func(resp ServerResponse, errText string) {
				invoke("webRequest.get", cb, func(vm *goja.Runtime) []goja.Value {
					obj := vm.NewObject()
					_ = obj.Set("status", resp.Status)
					_ = obj.Set("responseText", resp.ResponseText)
					_ = obj.Set("headers", resp.Headers)
					return []goja.Value{obj, vm.ToValue(errText)}
				})
			})
		},
	}); err != nil {
		return fmt.Errorf("platform: binding _webRequest: %w", err)
	}

	if err := eng.SetGlobal("_timer", map[string]any{
		"setTimer": func(ms int64, cb goja.Callable) {
			p.timer.SetTimer(time.Duration(ms)*time.Millisecond, func() {
				invoke("timer.setTimer", cb, func(vm *goja.Runtime) []goja.Value {
					return nil
				})
			})
		},
	}); err != nil {
		return fmt.Errorf("platform: binding _timer: %w", err)
	}

	return nil
}
