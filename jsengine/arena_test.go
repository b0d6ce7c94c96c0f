package jsengine

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"
)

func TestArena_AllocGetRelease(t *testing.T) {
	t.Parallel()

	a := newArena()
	v := goja.Undefined()

	ref, ok := a.alloc(v)
	require.True(t, ok)

	got, err := a.get(ref)
	require.NoError(t, err)
	require.Equal(t, v, got)

	a.release(ref)
	_, err = a.get(ref)
	require.True(t, IsKind(err, KindHandleReleased))

	// Releasing again is a no-op.
	a.release(ref)
}

func TestArena_SlotReuseBumpsGeneration(t *testing.T) {
	t.Parallel()

	a := newArena()

	ref1, ok := a.alloc(goja.Undefined())
	require.True(t, ok)
	a.release(ref1)

	// The freed slot is reused with a new generation; the stale
	// reference must not resolve to the new occupant.
	ref2, ok := a.alloc(goja.Null())
	require.True(t, ok)
	require.Equal(t, ref1.slot, ref2.slot)
	require.NotEqual(t, ref1.gen, ref2.gen)

	_, err := a.get(ref1)
	require.True(t, IsKind(err, KindHandleReleased))

	got, err := a.get(ref2)
	require.NoError(t, err)
	require.Equal(t, goja.Null(), got)
}

func TestArena_Dispose(t *testing.T) {
	t.Parallel()

	a := newArena()

	ref1, _ := a.alloc(goja.Undefined())
	ref2, _ := a.alloc(goja.Undefined())
	a.release(ref2)

	require.Equal(t, 1, a.dispose(), "one handle was still live")
	require.Equal(t, 0, a.dispose(), "dispose is idempotent")

	_, err := a.get(ref1)
	require.True(t, IsKind(err, KindEngineDisposed))

	_, ok := a.alloc(goja.Undefined())
	require.False(t, ok, "alloc after dispose must fail")

	// Release after dispose abandons the reference silently.
	a.release(ref1)
}
