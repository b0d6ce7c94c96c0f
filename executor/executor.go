// Package executor provides the task-dispatch abstraction used for all
// asynchronous work in the platform: filter-engine construction,
// deferred ready callbacks and collaborator completions.
package executor

import (
	"sync"

	"go.uber.org/zap"

	"github.com/joeycumines/goja-adblock/internal/goroutineid"
)

// Executor schedules units of work for future execution.
//
// Contract:
//   - Dispatch schedules task to run at some point in the future. A task
//     dispatched after Stop has been called is never executed.
//   - Stop is idempotent and irreversible. After Stop returns, no task
//     starts executing: queued-but-unstarted tasks are abandoned, and a
//     task already running is allowed to finish.
type Executor interface {
	Dispatch(task func())
	Stop()
}

// Serial runs dispatched tasks one at a time, in dispatch order, on a
// single worker goroutine. A panicking task is logged and swallowed;
// task-level error handling is the task's own responsibility.
type Serial struct {
	log *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool

	workerID int64
	done     chan struct{}
}

// NewSerial creates a started Serial executor. A nil logger disables
// panic logging.
func NewSerial(log *zap.Logger) *Serial {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Serial{
		log:  log,
		done: make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.worker()
	return e
}

// Dispatch schedules task. It is a no-op after Stop, and a no-op for a
// nil task.
func (e *Serial) Dispatch(task func()) {
	if task == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.queue = append(e.queue, task)
	e.cond.Signal()
}

// Stop stops the executor. It waits for the worker to wind down, so
// that once Stop returns no task is running or will ever run, unless
// called from a dispatched task itself, in which case the running task
// is the one being allowed to finish and there is nothing to wait for.
func (e *Serial) Stop() {
	e.mu.Lock()
	if !e.stopped {
		e.stopped = true
		e.queue = nil
		e.cond.Signal()
	}
	workerID := e.workerID
	e.mu.Unlock()

	if goroutineid.Get() == workerID {
		// Stop was called from within a task; joining would deadlock.
		return
	}
	<-e.done
}

func (e *Serial) worker() {
	defer close(e.done)

	e.mu.Lock()
	e.workerID = goroutineid.Get()
	for {
		for len(e.queue) == 0 && !e.stopped {
			e.cond.Wait()
		}
		if e.stopped {
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.run(task)

		e.mu.Lock()
	}
}

// run isolates task failures so a panicking task cannot take down the
// dispatch loop.
func (e *Serial) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("dispatched task panicked", zap.Any("panic", r))
		}
	}()
	task()
}
