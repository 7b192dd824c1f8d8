package glide

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valkeyglide/go-core/internal/resp"
)

// connState is the per-connection state machine (§4.1).
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateHandshaking
	stateReady
	stateClosing
)

func (s connState) String() string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateConnecting:
		return "connecting"
	case stateHandshaking:
		return "handshaking"
	case stateReady:
		return "ready"
	case stateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// ConnOpts configures a single node Connection. It is the glide-side
// analogue of the teacher's Opts struct.
type ConnOpts struct {
	Addr          string
	Username      string
	Password      string
	Timeout       time.Duration
	Reconnect     time.Duration
	MaxReconnect  time.Duration
	MaxReconnects uint
	Protocol      ServerProtocol
	TLS           *SslOpts
	Logger        Logger
	ClientName    string
	// DatabaseId selects a database via SELECT during handshake.
	// Standalone deployments only (§6); nil sends no SELECT.
	DatabaseId *int
}

// Connection is a single multiplexed, pipelined link to one server node.
// A dedicated writer goroutine coalesces outgoing commands and a
// dedicated reader goroutine decodes replies and hands them back to the
// dispatcher; callers never touch the socket directly. This split mirrors
// the teacher's own single-writer/single-reader Connection design.
type Connection struct {
	opts ConnOpts
	addr net.Addr

	mu    sync.RWMutex
	state connState
	conn  net.Conn
	w     *bufio.Writer

	disp     *dispatcher
	outbox   chan outboxEntry
	shutdown chan struct{}

	protocol ServerProtocol
	connId   string

	// lastUsed is a UnixNano timestamp of the last Send call, read
	// without a lock by IdleFor for the topology's idle-connection
	// reaper (§4.2).
	lastUsed int64
}

type outboxEntry struct {
	name string
	args []interface{}
	fut  *Future
}

// NewConnection constructs a Connection but does not dial; call Connect.
func NewConnection(opts ConnOpts) *Connection {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	if opts.Protocol == 0 {
		opts.Protocol = RESP3
	}
	if opts.Logger == nil {
		opts.Logger = SimpleLogger{}
	}
	return &Connection{
		opts:     opts,
		disp:     newDispatcher(),
		outbox:   make(chan outboxEntry, pendingSlabSize),
		shutdown: make(chan struct{}),
		protocol: opts.Protocol,
		lastUsed: time.Now().UnixNano(),
	}
}

func (c *Connection) stateToString() string {
	return connState(atomic.LoadInt32((*int32)(&c.state))).String()
}

func (c *Connection) setState(s connState) {
	atomic.StoreInt32((*int32)(&c.state), int32(s))
}

func (c *Connection) report(ev LogEvent) {
	c.opts.Logger.Report(ev, c)
}

// Connect dials the node, completes the handshake (HELLO/AUTH, §4.1), and
// starts the writer/reader goroutines.
func (c *Connection) Connect(ctx context.Context) error {
	c.setState(stateConnecting)

	netConn, err := dialNode(ctx, c.opts)
	if err != nil {
		c.setState(stateDisconnected)
		c.report(ConnectionFailedEvent{baseEvent: newBaseEvent(nil), Error: err})
		return newClientError(KindConnection, "dial failed", err)
	}

	c.mu.Lock()
	c.conn = netConn
	c.addr = netConn.RemoteAddr()
	c.w = bufio.NewWriterSize(netConn, 64*1024)
	c.mu.Unlock()

	c.setState(stateHandshaking)
	reader := bufio.NewReaderSize(netConn, 64*1024)
	negotiated, err := handshake(c.w, reader, c.opts)
	if err != nil {
		netConn.Close()
		c.setState(stateDisconnected)
		c.report(ConnectionFailedEvent{baseEvent: newBaseEvent(c.addr), Error: err})
		return newClientError(KindConnection, "handshake failed", err)
	}
	c.protocol = negotiated
	c.connId = uuid.NewString()

	c.setState(stateReady)
	c.report(ConnectedEvent{baseEvent: newBaseEvent(c.addr)})

	go c.writeLoop()
	go c.readLoop(reader)

	return nil
}

// Send enqueues a command and returns a Future for its reply. Commands
// queue in wire order; the writer goroutine coalesces as many as are
// already buffered into a single syscall (§4.1's pipelining behavior).
func (c *Connection) Send(ctx context.Context, name string, args ...interface{}) *Future {
	state := c.stateToString()
	if state == "closing" || state == "disconnected" {
		return newErrorFuture(newClientError(KindClosing, "connection not ready", nil))
	}

	atomic.StoreInt64(&c.lastUsed, time.Now().UnixNano())

	fut := newFuture(0)
	c.disp.register(fut)

	select {
	case c.outbox <- outboxEntry{name: name, args: args, fut: fut}:
	case <-c.shutdown:
		return newErrorFuture(newClientError(KindClosing, "connection closing", nil))
	}

	timeout := c.opts.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < timeout {
			timeout = d
		}
	}
	go c.enforceTimeout(fut, timeout)

	return fut
}

func (c *Connection) enforceTimeout(fut *Future, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-fut.WaitChan():
	case <-timer.C:
		if c.disp.cancel(fut.callbackId) {
			fut.resolve(resp.Value{}, newClientError(KindTimeout,
				fmt.Sprintf("request timed out after %s", timeout), nil))
			c.report(TimeoutEvent{baseEvent: newBaseEvent(c.addr), RequestId: fut.callbackId, Timeout: timeout})
		}
	}
}

func (c *Connection) writeLoop() {
	for {
		var entry outboxEntry
		select {
		case entry = <-c.outbox:
		case <-c.shutdown:
			return
		}

		if err := resp.WriteCommand(c.w, entry.name, entry.args...); err != nil {
			c.fail(err)
			return
		}

		// Coalesce whatever else is already queued before flushing, so a
		// burst of pipelined requests costs one syscall instead of N.
	drain:
		for {
			select {
			case next := <-c.outbox:
				if err := resp.WriteCommand(c.w, next.name, next.args...); err != nil {
					c.fail(err)
					return
				}
			default:
				break drain
			}
		}

		if err := c.w.Flush(); err != nil {
			c.fail(err)
			return
		}
	}
}

func (c *Connection) readLoop(r *bufio.Reader) {
	for {
		val, err := resp.ReadValue(r)
		if err != nil {
			c.fail(err)
			return
		}

		if val.Kind == resp.KindPush {
			c.report(PubSubPushUnsupportedEvent{baseEvent: newBaseEvent(c.addr)})
			continue
		}

		fut, ok := c.disp.next()
		if !ok {
			// No pending slot at all claims this reply: the wire is no
			// longer correlatable, so the connection is unrecoverable
			// (§4.2: "an unknown callback_idx is a protocol error and
			// closes the connection").
			c.report(UnexpectedResultIdEvent{baseEvent: newBaseEvent(c.addr)})
			c.fail(newClientError(KindConnection, "unexpected reply with no pending request", nil))
			return
		}
		if fut == nil {
			// Tombstoned slot: the caller already gave up on this request
			// via timeout. The reply still had to be consumed to keep
			// every later slot aligned, but there's nothing left to
			// resolve.
			continue
		}
		fut.resolve(val, nil)
	}
}

// fail tears the connection down, resolves every pending request with
// err, and — unless the connection is being closed for good — starts a
// backoff-scheduled reconnect loop so a dropped node recovers on its own
// (§4.2) instead of staying dead until some other code happens to redial
// it.
func (c *Connection) fail(err error) {
	c.mu.Lock()
	if c.state == stateClosing || c.state == stateDisconnected {
		c.mu.Unlock()
		return
	}
	c.setState(stateDisconnected)
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.disp.failAll(newClientError(KindConnection, "connection lost", err))
	c.drainOutbox()
	c.report(DisconnectedEvent{baseEvent: newBaseEvent(c.addr), Reason: err})

	if c.opts.Reconnect > 0 {
		go c.reconnectLoop()
	}
}

// drainOutbox discards any commands still buffered from the failed
// connection attempt. Their Futures were already resolved by failAll;
// left in the channel they would otherwise get rewritten on the
// reconnected socket with no dispatcher slot left to correlate their
// reply against.
func (c *Connection) drainOutbox() {
	for {
		select {
		case <-c.outbox:
		default:
			return
		}
	}
}

// reconnectLoop redials the node on the configured exponential backoff
// schedule until it succeeds or the connection is closed for good.
func (c *Connection) reconnectLoop() {
	err := retryReconnect(func() error {
		return c.Connect(context.Background())
	}, c.opts.Reconnect, c.opts.MaxReconnect, c.shutdown)
	if err != nil {
		c.report(ConnectionFailedEvent{baseEvent: newBaseEvent(c.addr), Error: err})
	}
}

// Close shuts the connection down for good, failing any pending requests.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == stateClosing {
		c.mu.Unlock()
		return nil
	}
	c.setState(stateClosing)
	conn := c.conn
	c.mu.Unlock()

	close(c.shutdown)
	if conn != nil {
		conn.Close()
	}
	c.disp.failAll(newClientError(KindClosing, "connection closed", nil))
	c.report(ClosedEvent{baseEvent: newBaseEvent(c.addr)})
	return nil
}

func (c *Connection) Ready() bool {
	return connState(atomic.LoadInt32((*int32)(&c.state))) == stateReady
}

// IdleFor reports how long it has been since the last Send call, used by
// the topology's idle-connection reaper (§4.2).
func (c *Connection) IdleFor() time.Duration {
	last := atomic.LoadInt64(&c.lastUsed)
	return time.Since(time.Unix(0, last))
}
