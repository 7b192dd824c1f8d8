package glide

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestConnectionReconnectsAfterDrop exercises retry.go's backoff schedule
// wired into Connection.fail: a dropped socket must redial itself without
// any other code having to notice and reconnect it.
func TestConnectionReconnectsAfterDrop(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn := NewConnection(ConnOpts{
		Addr:         srv.Addr(),
		Timeout:      500 * time.Millisecond,
		Reconnect:    10 * time.Millisecond,
		MaxReconnect: 50 * time.Millisecond,
	})
	require.NoError(t, conn.Connect(ctx))
	defer conn.Close()

	_, err := conn.Send(ctx, "PING").Get()
	require.NoError(t, err)

	srv.DropConnections()

	require.Eventually(t, func() bool {
		return conn.Ready()
	}, 2*time.Second, 10*time.Millisecond, "connection never recovered after the drop")

	_, err = conn.Send(ctx, "PING").Get()
	require.NoError(t, err)
}

// TestConnectionNoReconnectAfterClose makes sure a deliberate Close never
// triggers the same recovery path: a closed connection must stay closed.
func TestConnectionNoReconnectAfterClose(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn := NewConnection(ConnOpts{
		Addr:         srv.Addr(),
		Timeout:      500 * time.Millisecond,
		Reconnect:    10 * time.Millisecond,
		MaxReconnect: 50 * time.Millisecond,
	})
	require.NoError(t, conn.Connect(ctx))

	require.NoError(t, conn.Close())

	require.Never(t, func() bool {
		return conn.Ready()
	}, 200*time.Millisecond, 10*time.Millisecond, "a closed connection must not reconnect itself")
}
