package glide

import "time"

// ReadFromStrategy selects which role within a slot's owning shard a read
// request prefers, per §6's read_from option.
type ReadFromStrategy int

const (
	// Primary always routes to the slot's primary.
	Primary ReadFromStrategy = iota
	// PreferReplica round-robins across a slot's replicas, falling back to
	// the primary if none are Ready.
	PreferReplica
)

// ServerProtocol selects the RESP version negotiated with HELLO.
type ServerProtocol int

const (
	RESP2 ServerProtocol = 2
	RESP3 ServerProtocol = 3
)

const (
	// defaultRequestTimeout is the per-request deadline (§6) when the
	// caller does not configure one.
	defaultRequestTimeout = 250 * time.Millisecond
	// defaultIdleCloseAfter is how long a Ready replica connection may go
	// without a Send before the topology reaper closes it.
	defaultIdleCloseAfter = 5 * time.Minute
	// defaultRefreshInterval is the scheduled topology refresh period for
	// cluster mode (§4.4, refresh trigger (d)).
	defaultRefreshInterval = 60 * time.Second
	// maxRedirections bounds a MOVED/ASK redirection chain per request
	// (§4.5).
	maxRedirections = 5
	// pendingSlabSize is the capacity of each connection's outbox channel
	// and the initial size hint of the dispatcher's callback-id map.
	pendingSlabSize = 128
)
