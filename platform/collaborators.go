package platform

import (
	"sync"
	"time"

	"github.com/joeycumines/goja-adblock/executor"
)

// Callback reports the outcome of an asynchronous collaborator
// operation: an empty string on success, a human-readable description
// on failure. Collaborators never complete synchronously from the
// caller's perspective and may invoke the callback on any goroutine.
type Callback func(errText string)

// FileSystem is the storage collaborator. Implementations own all
// on-disk I/O; the platform core never touches files itself.
type FileSystem interface {
	Read(name string, cb func(data []byte, errText string))
	Write(name string, data []byte, cb Callback)
	Move(from, to string, cb Callback)
	Remove(name string, cb Callback)
}

// ServerResponse is the result of a web request.
type ServerResponse struct {
	Status       int64
	ResponseText string
	Headers      map[string]string
}

// WebRequest is the network collaborator.
type WebRequest interface {
	GET(url string, headers map[string]string, cb func(resp ServerResponse, errText string))
}

// Timer is the deferred-execution collaborator.
type Timer interface {
	SetTimer(d time.Duration, task func())
}

// MapFileSystem is an in-memory FileSystem for tests and the shell.
// Completions are delivered through the supplied Executor so callers
// observe the same asynchronous contract as a real file system.
type MapFileSystem struct {
	exec executor.Executor

	mu    sync.Mutex
	files map[string][]byte
}

// NewMapFileSystem creates an empty in-memory file system delivering
// callbacks via exec.
func NewMapFileSystem(exec executor.Executor) *MapFileSystem {
	return &MapFileSystem{
		exec:  exec,
		files: make(map[string][]byte),
	}
}

func (fs *MapFileSystem) Read(name string, cb func(data []byte, errText string)) {
	fs.exec.Dispatch(func() {
		fs.mu.Lock()
		data, ok := fs.files[name]
		fs.mu.Unlock()
		if !ok {
			cb(nil, "no such file: "+name)
			return
		}
		cb(append([]byte(nil), data...), "")
	})
}

func (fs *MapFileSystem) Write(name string, data []byte, cb Callback) {
	fs.exec.Dispatch(func() {
		fs.mu.Lock()
		fs.files[name] = append([]byte(nil), data...)
		fs.mu.Unlock()
		cb("")
	})
}

func (fs *MapFileSystem) Move(from, to string, cb Callback) {
	fs.exec.Dispatch(func() {
		fs.mu.Lock()
		data, ok := fs.files[from]
		if ok {
			fs.files[to] = data
			delete(fs.files, from)
		}
		fs.mu.Unlock()
		if !ok {
			cb("no such file: " + from)
			return
		}
		cb("")
	})
}

func (fs *MapFileSystem) Remove(name string, cb Callback) {
	fs.exec.Dispatch(func() {
		fs.mu.Lock()
		delete(fs.files, name)
		fs.mu.Unlock()
		cb("")
	})
}

// NoopWebRequest answers every request with an empty 200 response.
type NoopWebRequest struct{}

func (NoopWebRequest) GET(url string, headers map[string]string, cb func(resp ServerResponse, errText string)) {
	cb(ServerResponse{Status: 200}, "")
}

// ExecutorTimer schedules tasks with time.AfterFunc and runs them on
// the Executor, keeping timer callbacks off arbitrary runtime-owned
// goroutines.
type ExecutorTimer struct {
	exec executor.Executor
}

// NewExecutorTimer creates a Timer delivering tasks via exec.
func NewExecutorTimer(exec executor.Executor) *ExecutorTimer {
	return &ExecutorTimer{exec: exec}
}

func (t *ExecutorTimer) SetTimer(d time.Duration, task func()) {
	time.AfterFunc(d, func() {
		t.exec.Dispatch(task)
	})
}
