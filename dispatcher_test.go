package glide

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valkeyglide/go-core/internal/resp"
)

func TestDispatcherFIFOOrder(t *testing.T) {
	d := newDispatcher()

	f1 := newFuture(0)
	f2 := newFuture(0)
	f3 := newFuture(0)

	id1 := d.register(f1)
	id2 := d.register(f2)
	id3 := d.register(f3)

	require.NotEqual(t, id1, id2)
	require.NotEqual(t, id2, id3)

	got1, ok := d.next()
	require.True(t, ok)
	require.Same(t, f1, got1)

	got2, ok := d.next()
	require.True(t, ok)
	require.Same(t, f2, got2)

	got3, ok := d.next()
	require.True(t, ok)
	require.Same(t, f3, got3)

	_, ok = d.next()
	require.False(t, ok)
}

func TestDispatcherCancel(t *testing.T) {
	d := newDispatcher()
	f1 := newFuture(0)
	f2 := newFuture(0)
	d.register(f1)
	id2 := d.register(f2)

	require.True(t, d.cancel(id2))
	require.False(t, d.cancel(id2)) // already removed

	got, ok := d.next()
	require.True(t, ok)
	require.Same(t, f1, got)

	// f2's slot stays queued as a tombstone until its late reply is read.
	got, ok = d.next()
	require.True(t, ok)
	require.Nil(t, got)

	_, ok = d.next()
	require.False(t, ok)
}

// TestDispatcherCancelHeadPreservesAlignment exercises cancelling the
// oldest in-flight request while others are queued behind it — the
// realistic timeout scenario, since a request almost always times out
// before requests sent after it. The reply to the cancelled request is
// still in flight and must land in the tombstoned slot rather than
// bleeding into f2/f3's replies.
func TestDispatcherCancelHeadPreservesAlignment(t *testing.T) {
	d := newDispatcher()
	f1 := newFuture(0)
	f2 := newFuture(0)
	f3 := newFuture(0)

	id1 := d.register(f1)
	d.register(f2)
	d.register(f3)

	require.True(t, d.cancel(id1))

	// The wire still delivers three replies in order: the stale reply for
	// the cancelled f1, then f2's, then f3's.
	got, ok := d.next()
	require.True(t, ok)
	require.Nil(t, got) // tombstone: discard this reply, nothing to resolve

	got, ok = d.next()
	require.True(t, ok)
	require.Same(t, f2, got)

	got, ok = d.next()
	require.True(t, ok)
	require.Same(t, f3, got)

	_, ok = d.next()
	require.False(t, ok)

	// f1 was never resolved by next(); it must still be independently
	// failed or resolved by the timeout path, not left hanging here.
	select {
	case <-f1.WaitChan():
		t.Fatal("cancelled future must not be resolved by dispatcher.next()")
	default:
	}
}

func TestDispatcherFailAll(t *testing.T) {
	d := newDispatcher()
	f1 := newFuture(0)
	f2 := newFuture(0)
	d.register(f1)
	d.register(f2)

	d.failAll(newClientError(KindConnection, "boom", nil))

	_, err := f1.Get()
	require.Error(t, err)
	_, err = f2.Get()
	require.Error(t, err)

	_, ok := d.next()
	require.False(t, ok)
}

func TestFutureResolve(t *testing.T) {
	f := newFuture(0)
	go f.resolve(resp.Value{Kind: resp.KindSimpleString, Raw: []byte("OK")}, nil)
	v, err := f.Get()
	require.NoError(t, err)
	require.Equal(t, "OK", string(v.Raw))
}
