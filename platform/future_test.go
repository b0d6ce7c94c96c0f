package platform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/goja-adblock/filterengine"
)

func TestEngineFuture_CallbacksFireInAttachOrder(t *testing.T) {
	f := newEngineFuture()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		f.attach(func(engine *filterengine.FilterEngine, err error) {
			order = append(order, i)
		})
	}

	callbacks := f.resolve(nil, nil)
	require.Len(t, callbacks, 3)
	for _, cb := range callbacks {
		cb(nil, nil)
	}
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestEngineFuture_AttachAfterResolveRunsInline(t *testing.T) {
	f := newEngineFuture()
	want := errors.New("boom")
	f.resolve(nil, want)

	var got error
	f.attach(func(engine *filterengine.FilterEngine, err error) {
		got = err
	})
	require.Same(t, want, got)
}

func TestEngineFuture_WaitReturnsOutcome(t *testing.T) {
	f := newEngineFuture()
	want := errors.New("boom")

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine, err := f.wait()
		require.Nil(t, engine)
		require.Same(t, want, err)
	}()

	f.resolve(nil, want)
	<-done
	require.True(t, f.isResolved())
}

func TestEngineFuture_ResolveTwicePanics(t *testing.T) {
	f := newEngineFuture()
	f.resolve(nil, nil)
	require.Panics(t, func() {
		f.resolve(nil, nil)
	})
}
