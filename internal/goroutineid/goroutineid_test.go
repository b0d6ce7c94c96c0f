package goroutineid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGet_StableWithinGoroutine(t *testing.T) {
	t.Parallel()

	id := Get()
	require.Greater(t, id, int64(0))
	require.Equal(t, id, Get())
}

func TestGet_DistinctAcrossGoroutines(t *testing.T) {
	t.Parallel()

	const n = 8
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			ids <- Get()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		require.Greater(t, id, int64(0))
		require.False(t, seen[id], "goroutine id %d observed twice", id)
		seen[id] = true
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stack    string
		expected int64
	}{
		{"running", "goroutine 123 [running]:\nmain.main()\n", 123},
		{"chan receive", "goroutine 456 [chan receive]:\n", 456},
		{"empty", "", 0},
		{"no prefix", "main.main()\n", 0},
		{"non-numeric id", "goroutine abc [running]:\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, parse([]byte(tt.stack)))
		})
	}
}
