// Package goroutineid extracts the current goroutine's id from a stack
// trace. It exists because the runtime deliberately does not expose the
// id; we only ever use it to answer "am I on goroutine X?", never to key
// state by goroutine.
package goroutineid

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

var stackPool = sync.Pool{
	New: func() any {
		b := make([]byte, 256)
		return &b
	},
}

var prefix = []byte("goroutine ")

// Get returns the current goroutine id, or 0 if it cannot be parsed.
// Callers must treat 0 as "unknown" and fall back to the conservative
// path (scheduling instead of running inline).
func Get() int64 {
	bp := stackPool.Get().(*[]byte)
	defer stackPool.Put(bp)
	n := runtime.Stack(*bp, false)
	return parse((*bp)[:n])
}

// parse reads the id out of "goroutine N [state]:...".
func parse(stack []byte) int64 {
	rest, ok := bytes.CutPrefix(stack, prefix)
	if !ok {
		return 0
	}
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0
	}
	id, err := strconv.ParseInt(string(rest[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
