package jsengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(context.Background())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestNew(t *testing.T) {
	eng := newTestEngine(t)

	if !eng.IsRunning() {
		t.Error("engine should be running after creation")
	}
	if eng.Registry() == nil {
		t.Error("registry should not be nil")
	}
}

func TestNew_WithRegistry(t *testing.T) {
	registry := require.NewRegistry()
	eng, err := New(context.Background(), WithRegistry(registry))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer eng.Close()

	if eng.Registry() != registry {
		t.Error("should use the provided registry")
	}
}

func TestEngine_Close(t *testing.T) {
	eng, err := New(context.Background())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := eng.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if eng.IsRunning() {
		t.Error("engine should not be running after Close")
	}
	if err := eng.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	select {
	case <-eng.Done():
	default:
		t.Error("Done channel should be closed after Close")
	}
}

func TestEngine_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	eng, err := New(ctx)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cancel()

	select {
	case <-eng.Done():
	case <-time.After(time.Second):
		t.Error("engine should close when its context is canceled")
	}
}

func TestEngine_Evaluate(t *testing.T) {
	eng := newTestEngine(t)

	v, err := eng.Evaluate("test.js", "6 * 7")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	defer v.Release()

	n, err := v.AsInt()
	if err != nil {
		t.Fatalf("AsInt failed: %v", err)
	}
	if n != 42 {
		t.Errorf("expected 42, got %d", n)
	}
}

func TestEngine_Evaluate_SyntaxError(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Evaluate("bad.js", "var x = {")
	if err == nil {
		t.Fatal("expected error for invalid script")
	}
	if !IsKind(err, KindScriptError) {
		t.Errorf("expected ScriptError, got %v", err)
	}
}

func TestEngine_Evaluate_Throw(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Evaluate("throw.js", `throw new Error("kaboom")`)
	if err == nil {
		t.Fatal("expected error for throwing script")
	}
	if !IsKind(err, KindScriptError) {
		t.Fatalf("expected ScriptError, got %v", err)
	}
}

func TestEngine_EvaluateAfterClose(t *testing.T) {
	eng, err := New(context.Background())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	eng.Close()

	_, err = eng.Evaluate("test.js", "1 + 1")
	if !IsKind(err, KindEngineDisposed) {
		t.Errorf("expected EngineDisposed, got %v", err)
	}
}

func TestEngine_SetGetGlobal(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.SetGlobal("answer", 42); err != nil {
		t.Fatalf("SetGlobal failed: %v", err)
	}

	v, err := eng.GetGlobal("answer")
	if err != nil {
		t.Fatalf("GetGlobal failed: %v", err)
	}
	defer v.Release()

	n, err := v.AsInt()
	if err != nil {
		t.Fatalf("AsInt failed: %v", err)
	}
	if n != 42 {
		t.Errorf("expected 42, got %d", n)
	}

	missing, err := eng.GetGlobal("missing")
	if err != nil {
		t.Fatalf("GetGlobal failed: %v", err)
	}
	defer missing.Release()
	if !missing.IsUndefined() {
		t.Error("missing global should be undefined")
	}
}

func TestEngine_ConcurrentAccess(t *testing.T) {
	eng := newTestEngine(t)

	if _, err := eng.Evaluate("init.js", "var counter = 0;"); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	const numGoroutines = 50
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := eng.Evaluate("inc.js", "counter++;"); err != nil {
				t.Errorf("concurrent Evaluate failed: %v", err)
			}
		}()
	}
	wg.Wait()

	v, err := eng.GetGlobal("counter")
	if err != nil {
		t.Fatalf("GetGlobal failed: %v", err)
	}
	defer v.Release()
	n, err := v.AsInt()
	if err != nil {
		t.Fatalf("AsInt failed: %v", err)
	}
	if n != numGoroutines {
		t.Errorf("expected counter to be %d, got %d", numGoroutines, n)
	}
}

func TestEngine_ReentrantFromLoop(t *testing.T) {
	eng := newTestEngine(t)

	// A native function invoked by script calls back into the engine;
	// this must execute directly instead of deadlocking.
	err := eng.SetGlobal("nested", func() int64 {
		v, err := eng.Evaluate("nested.js", "21 * 2")
		if err != nil {
			t.Errorf("nested Evaluate failed: %v", err)
			return 0
		}
		defer v.Release()
		n, err := v.AsInt()
		if err != nil {
			t.Errorf("nested AsInt failed: %v", err)
		}
		return n
	})
	if err != nil {
		t.Fatalf("SetGlobal failed: %v", err)
	}

	v, err := eng.Evaluate("outer.js", "nested()")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	defer v.Release()
	n, err := v.AsInt()
	if err != nil {
		t.Fatalf("AsInt failed: %v", err)
	}
	if n != 42 {
		t.Errorf("expected 42, got %d", n)
	}
}

func TestEngine_Schedule(t *testing.T) {
	eng := newTestEngine(t)

	done := make(chan struct{})
	ok := eng.Schedule(func(vm *goja.Runtime) {
		close(done)
	})
	if !ok {
		t.Fatal("Schedule should succeed on a running engine")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled function should run")
	}

	eng.Close()
	if eng.Schedule(func(vm *goja.Runtime) {}) {
		t.Error("Schedule should fail on a closed engine")
	}
}

func TestEngine_SyncTimeout(t *testing.T) {
	eng, err := New(context.Background(), WithSyncTimeout(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer eng.Close()

	// Occupy the loop so the next synchronous operation times out.
	blocked := make(chan struct{})
	release := make(chan struct{})
	eng.Schedule(func(vm *goja.Runtime) {
		close(blocked)
		<-release
	})
	<-blocked
	defer close(release)

	_, err = eng.Evaluate("t.js", "1")
	if err == nil {
		t.Error("expected timeout error")
	}
}
