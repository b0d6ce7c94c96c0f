package platform

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluatedSourceSet_SkipsRecordedSources(t *testing.T) {
	set := newEvaluatedSourceSet()
	id := sourceID("a.js", "1 + 1")

	var runs int
	evaluate := func() error {
		runs++
		return nil
	}

	require.NoError(t, set.evaluateOnce(id, evaluate))
	require.NoError(t, set.evaluateOnce(id, evaluate))
	require.Equal(t, 1, runs)
	require.Equal(t, 1, set.size())
}

func TestEvaluatedSourceSet_FailedEvaluationCanRetry(t *testing.T) {
	set := newEvaluatedSourceSet()
	id := sourceID("a.js", "1 + 1")

	boom := errors.New("boom")
	require.ErrorIs(t, set.evaluateOnce(id, func() error { return boom }), boom)
	require.Equal(t, 0, set.size())

	var runs int
	require.NoError(t, set.evaluateOnce(id, func() error { runs++; return nil }))
	require.Equal(t, 1, runs)
}

func TestEvaluatedSourceSet_ConcurrentRacersEvaluateOnce(t *testing.T) {
	set := newEvaluatedSourceSet()
	id := sourceID("a.js", "1 + 1")

	var runs atomic.Int32
	evaluate := func() error {
		runs.Add(1)
		time.Sleep(10 * time.Millisecond)
		return nil
	}

	const racers = 10
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			require.NoError(t, set.evaluateOnce(id, evaluate))
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, runs.Load())
	require.Equal(t, 1, set.size())
}

func TestEvaluatedSourceSet_RacerRetriesAfterFailure(t *testing.T) {
	set := newEvaluatedSourceSet()
	id := sourceID("a.js", "1 + 1")

	boom := errors.New("boom")
	started := make(chan struct{})
	release := make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- set.evaluateOnce(id, func() error {
			close(started)
			<-release
			return boom
		})
	}()

	<-started
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- set.evaluateOnce(id, func() error { return nil })
	}()

	close(release)
	require.ErrorIs(t, <-firstDone, boom)
	// The waiting racer takes its own turn once the failure clears.
	require.NoError(t, <-secondDone)
	require.Equal(t, 1, set.size())
}

func TestSourceID_DistinguishesContent(t *testing.T) {
	a := sourceID("a.js", "1")
	b := sourceID("a.js", "2")
	c := sourceID("b.js", "1")
	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
	require.Contains(t, a, "a.js#")
}
