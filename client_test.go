package glide

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valkeyglide/go-core/internal/faketcp"
)

// newTestServer starts a fake RESP server backed by an in-memory map,
// good enough to drive the client through the HELLO/RESP2-fallback
// handshake and a handful of commands without a real server process.
func newTestServer(t *testing.T) *faketcp.Server {
	t.Helper()
	store := map[string]string{}

	srv, err := faketcp.Start(func(name string, args []string, w *bufio.Writer) {
		switch name {
		case "HELLO":
			// Simulate a RESP2-only node: no HELLO support.
			fmt.Fprintf(w, "-ERR unknown command 'HELLO'\r\n")
		case "PING":
			fmt.Fprintf(w, "+PONG\r\n")
		case "SET":
			if len(args) < 2 {
				fmt.Fprintf(w, "-ERR wrong number of arguments\r\n")
				return
			}
			store[args[0]] = args[1]
			fmt.Fprintf(w, "+OK\r\n")
		case "GET":
			if len(args) < 1 {
				fmt.Fprintf(w, "-ERR wrong number of arguments\r\n")
				return
			}
			v, ok := store[args[0]]
			if !ok {
				fmt.Fprintf(w, "$-1\r\n")
				return
			}
			fmt.Fprintf(w, "$%d\r\n%s\r\n", len(v), v)
		case "DEL":
			n := 0
			for _, k := range args {
				if _, ok := store[k]; ok {
					delete(store, k)
					n++
				}
			}
			fmt.Fprintf(w, ":%d\r\n", n)
		case "INCR":
			if len(args) < 1 {
				fmt.Fprintf(w, "-ERR wrong number of arguments\r\n")
				return
			}
			var n int
			fmt.Sscanf(store[args[0]], "%d", &n)
			n++
			store[args[0]] = fmt.Sprintf("%d", n)
			fmt.Fprintf(w, ":%d\r\n", n)
		default:
			fmt.Fprintf(w, "-ERR unknown command '%s'\r\n", strings.ToLower(name))
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestClientSetGetDel(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := NewClient(ctx, ClientConfiguration{
		Addresses: []string{srv.Addr()},
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(ctx, "foo", "SET", "foo", "bar")
	require.NoError(t, err)

	val, err := client.Do(ctx, "foo", "GET", "foo")
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), val)

	n, err := client.Do(ctx, "foo", "DEL", "foo")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	val, err = client.Do(ctx, "foo", "GET", "foo")
	require.NoError(t, err)
	require.Nil(t, val)
}

func TestClientConcurrentIncrsDistinct(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := NewClient(ctx, ClientConfiguration{
		Addresses: []string{srv.Addr()},
	})
	require.NoError(t, err)
	defer client.Close()

	const n = 20
	results := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() {
			v, err := client.Do(ctx, "counter", "INCR", "counter")
			require.NoError(t, err)
			results <- v.(int64)
		}()
	}

	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		v := <-results
		seen[v] = true
	}
	require.Len(t, seen, n) // every INCR observed a distinct, non-clobbered value
}

func TestClientTimeout(t *testing.T) {
	srv, err := faketcp.Start(func(name string, args []string, w *bufio.Writer) {
		if name == "HELLO" {
			fmt.Fprintf(w, "-ERR unknown command 'HELLO'\r\n")
			return
		}
		time.Sleep(200 * time.Millisecond)
		fmt.Fprintf(w, "+OK\r\n")
	})
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := NewClient(ctx, ClientConfiguration{
		Addresses:      []string{srv.Addr()},
		RequestTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(ctx, "foo", "SET", "foo", "bar")
	require.Error(t, err)
	var clientErr ClientError
	require.ErrorAs(t, err, &clientErr)
	require.Equal(t, KindTimeout, clientErr.Kind)
}
