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

// newTransactionTestServer fakes just enough MULTI/QUEUED/EXEC semantics
// to drive a Transaction end to end, with an artificial delay on every
// queued command so a test can tell pipelined writes from sequential
// round trips by elapsed time.
func newTransactionTestServer(t *testing.T, delay time.Duration) *faketcp.Server {
	t.Helper()
	store := map[string]string{}
	var inMulti bool
	var queuedCmds [][]string

	execOne := func(cmd []string, w *bufio.Writer) {
		name, args := cmd[0], cmd[1:]
		switch name {
		case "SET":
			store[args[0]] = args[1]
			fmt.Fprintf(w, "+OK\r\n")
		case "GET":
			v, ok := store[args[0]]
			if !ok {
				fmt.Fprintf(w, "$-1\r\n")
				return
			}
			fmt.Fprintf(w, "$%d\r\n%s\r\n", len(v), v)
		case "INCR":
			var n int
			fmt.Sscanf(store[args[0]], "%d", &n)
			n++
			store[args[0]] = fmt.Sprintf("%d", n)
			fmt.Fprintf(w, ":%d\r\n", n)
		default:
			fmt.Fprintf(w, "-ERR unknown command '%s'\r\n", strings.ToLower(name))
		}
	}

	srv, err := faketcp.Start(func(name string, args []string, w *bufio.Writer) {
		switch name {
		case "HELLO":
			fmt.Fprintf(w, "-ERR unknown command 'HELLO'\r\n")
		case "MULTI":
			inMulti = true
			queuedCmds = nil
			fmt.Fprintf(w, "+OK\r\n")
		case "DISCARD":
			inMulti = false
			fmt.Fprintf(w, "+OK\r\n")
		case "EXEC":
			inMulti = false
			time.Sleep(delay)
			fmt.Fprintf(w, "*%d\r\n", len(queuedCmds))
			for _, cmd := range queuedCmds {
				execOne(cmd, w)
			}
		default:
			cmd := append([]string{name}, args...)
			if inMulti {
				time.Sleep(delay)
				switch name {
				case "SET", "GET", "INCR":
				default:
					// A real server rejects an unknown command at queue time.
					fmt.Fprintf(w, "-ERR unknown command '%s'\r\n", strings.ToLower(name))
					return
				}
				queuedCmds = append(queuedCmds, cmd)
				fmt.Fprintf(w, "+QUEUED\r\n")
				return
			}
			execOne(cmd, w)
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

// TestTransactionPipelinesQueuedCommands asserts Queue never blocks on a
// network round trip: with N queued commands each carrying an artificial
// server-side delay, the old sequential-await behavior would make Queue
// alone take N*delay, while pipelining makes every Queue call return
// immediately and only Exec pays for the batch.
func TestTransactionPipelinesQueuedCommands(t *testing.T) {
	const delay = 40 * time.Millisecond
	srv := newTransactionTestServer(t, delay)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn := NewConnection(ConnOpts{Addr: srv.Addr(), Timeout: 2 * time.Second})
	require.NoError(t, conn.Connect(ctx))
	defer conn.Close()

	txn, err := NewTransaction(ctx, conn)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, txn.Queue("SET", "a", "1"))
	require.NoError(t, txn.Queue("SET", "b", "2"))
	require.NoError(t, txn.Queue("INCR", "c"))
	require.NoError(t, txn.Queue("GET", "a"))
	queueElapsed := time.Since(start)

	require.Less(t, queueElapsed, 2*delay,
		"Queue must return without waiting on each command's QUEUED reply")

	results, err := txn.Exec()
	require.NoError(t, err)
	require.Len(t, results, 4)

	setA, err := results[0].Result()
	require.NoError(t, err)
	require.Equal(t, "OK", setA)

	incrC, err := results[2].Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, incrC)

	getA, err := results[3].Result()
	require.NoError(t, err)
	require.Equal(t, []byte("1"), getA)
}

// TestTransactionExecAbortOnQueueError makes sure a queuing-time error
// (reported only once EXEC is reached, since Queue itself never blocks)
// still surfaces as a KindExecAbort error instead of a successful result.
func TestTransactionExecAbortOnQueueError(t *testing.T) {
	const delay = 5 * time.Millisecond
	srv := newTransactionTestServer(t, delay)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn := NewConnection(ConnOpts{Addr: srv.Addr(), Timeout: 2 * time.Second})
	require.NoError(t, conn.Connect(ctx))
	defer conn.Close()

	txn, err := NewTransaction(ctx, conn)
	require.NoError(t, err)

	require.NoError(t, txn.Queue("SET", "a", "1"))
	require.NoError(t, txn.Queue("BOGUS"))

	_, err = txn.Exec()
	require.Error(t, err)
	var reqErr RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, KindExecAbort, reqErr.Kind)
}
