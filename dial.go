package glide

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/valkeyglide/go-core/internal/resp"
)

// dialNode opens the TCP (or TLS) connection to a server node. The
// network/address split and timeout plumbing follow the teacher's own
// dial.go; transport selection is reduced to "plain" vs "tls" since
// cluster/standalone deployments never speak a unix-socket or custom
// transport scheme the way a Tarantool instance might.
func dialNode(ctx context.Context, opts ConnOpts) (net.Conn, error) {
	dialTimeout := opts.Timeout
	if dialTimeout <= 0 {
		dialTimeout = defaultRequestTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < dialTimeout {
			dialTimeout = d
		}
	}

	if opts.TLS != nil {
		return sslDialTimeout("tcp", opts.Addr, dialTimeout, *opts.TLS)
	}

	d := net.Dialer{Timeout: dialTimeout}
	return d.DialContext(ctx, "tcp", opts.Addr)
}

// handshake negotiates the wire protocol with HELLO, falling back to
// RESP2 AUTH when the server predates RESP3 (NOPROTO), per the Open
// Question resolution in §9: try HELLO 3 first, and only fall back to
// legacy AUTH+CLIENT SETNAME when the server rejects it. When
// opts.Protocol is RESP2, HELLO is skipped and the RESP2 path is used
// directly.
func handshake(w *bufio.Writer, r *bufio.Reader, opts ConnOpts) (ServerProtocol, error) {
	if opts.Protocol == RESP2 {
		return fallbackRESP2(w, r, opts)
	}
	helloArgs := []interface{}{3}
	if opts.Username != "" {
		helloArgs = append(helloArgs, "AUTH", opts.Username, opts.Password)
	}
	if opts.ClientName != "" {
		helloArgs = append(helloArgs, "SETNAME", opts.ClientName)
	}

	if err := resp.WriteCommand(w, "HELLO", helloArgs...); err != nil {
		return 0, err
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}

	val, err := resp.ReadValue(r)
	if err != nil {
		return 0, err
	}

	if kind, _, _, ok := val.AsError(); ok {
		if kind != ErrNone {
			// Any error here (commonly NOPROTO on RESP2-only servers, or
			// ERR unknown command for ancient servers) falls back to plain
			// RESP2 AUTH.
			return fallbackRESP2(w, r, opts)
		}
	}

	if err := selectDatabase(w, r, opts); err != nil {
		return 0, err
	}
	return RESP3, nil
}

func fallbackRESP2(w *bufio.Writer, r *bufio.Reader, opts ConnOpts) (ServerProtocol, error) {
	if opts.Username != "" {
		if err := resp.WriteCommand(w, "AUTH", opts.Username, opts.Password); err != nil {
			return 0, err
		}
	} else if opts.Password != "" {
		if err := resp.WriteCommand(w, "AUTH", opts.Password); err != nil {
			return 0, err
		}
	}
	if opts.ClientName != "" {
		if err := resp.WriteCommand(w, "CLIENT", "SETNAME", opts.ClientName); err != nil {
			return 0, err
		}
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}

	if opts.Username != "" || opts.Password != "" {
		val, err := resp.ReadValue(r)
		if err != nil {
			return 0, err
		}
		if kind, _, _, ok := val.AsError(); ok && kind != ErrNone {
			return 0, fmt.Errorf("authentication failed: %s", string(val.Raw))
		}
	}
	if opts.ClientName != "" {
		if _, err := resp.ReadValue(r); err != nil {
			return 0, err
		}
	}

	if err := selectDatabase(w, r, opts); err != nil {
		return 0, err
	}
	return RESP2, nil
}

// selectDatabase issues SELECT during handshake when opts.DatabaseId is
// set (§6: "Standalone only; SELECT on handshake"). A nil DatabaseId
// sends nothing, which is the only valid choice in cluster mode since
// slots are never partitioned by database id there.
func selectDatabase(w *bufio.Writer, r *bufio.Reader, opts ConnOpts) error {
	if opts.DatabaseId == nil {
		return nil
	}
	if err := resp.WriteCommand(w, "SELECT", *opts.DatabaseId); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	val, err := resp.ReadValue(r)
	if err != nil {
		return err
	}
	if kind, _, _, ok := val.AsError(); ok && kind != ErrNone {
		return fmt.Errorf("SELECT %d failed: %s", *opts.DatabaseId, string(val.Raw))
	}
	return nil
}

// ErrNone/ErrMoved/etc. are re-exported from resp for callers adapting
// handshake results; see internal/resp for the full ErrKind enum.
const (
	ErrNone        = resp.ErrNone
	ErrMoved       = resp.ErrMoved
	ErrAsk         = resp.ErrAsk
	ErrTryAgain    = resp.ErrTryAgain
	ErrClusterDown = resp.ErrClusterDown
	ErrCrossSlot   = resp.ErrCrossSlot
	ErrExecAbort   = resp.ErrExecAbort
	ErrNoAuth      = resp.ErrNoAuth
	ErrOther       = resp.ErrOther
)
