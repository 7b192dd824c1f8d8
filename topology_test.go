package glide

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valkeyglide/go-core/internal/faketcp"
)

// TestTopologyRefreshCoalesced drives a flood of concurrent Refresh
// triggers (the MOVED/TRYAGAIN/CLUSTERDOWN storm §4.4 describes) against
// a fake single-shard cluster and asserts only one CLUSTER SLOTS round
// trip actually happens; every other caller waits on and shares that
// result instead of starting its own.
func TestTopologyRefreshCoalesced(t *testing.T) {
	var srv *faketcp.Server
	var clusterSlotsCalls int64

	srv, err := faketcp.Start(func(name string, args []string, w *bufio.Writer) {
		switch name {
		case "HELLO":
			fmt.Fprintf(w, "-ERR unknown command 'HELLO'\r\n")
		case "PING":
			fmt.Fprintf(w, "+PONG\r\n")
		case "CLUSTER":
			if len(args) > 0 && strings.ToUpper(args[0]) == "SLOTS" {
				atomic.AddInt64(&clusterSlotsCalls, 1)
				time.Sleep(100 * time.Millisecond) // widen the race window
				host, port, _ := net.SplitHostPort(srv.Addr())
				fmt.Fprintf(w, "*1\r\n*3\r\n:0\r\n:16383\r\n*2\r\n$%d\r\n%s\r\n:%s\r\n", len(host), host, port)
				return
			}
			fmt.Fprintf(w, "-ERR unknown subcommand\r\n")
		default:
			fmt.Fprintf(w, "-ERR unknown command '%s'\r\n", strings.ToLower(name))
		}
	})
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	topo := NewClusterTopology(0, func(addr string) ConnOpts {
		return ConnOpts{Addr: addr, Timeout: 2 * time.Second}
	}, nil)
	seed := &node{addr: srv.Addr(), role: RoleUnknown}
	topo.byAddr[seed.addr] = seed
	topo.strategy[seed.addr] = &roundRobin{}
	require.NoError(t, topo.connectNode(ctx, seed))
	defer topo.Close()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = topo.Refresh(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, atomic.LoadInt64(&clusterSlotsCalls),
		"a concurrent flood of Refresh triggers must coalesce into one CLUSTER SLOTS round trip")
}
