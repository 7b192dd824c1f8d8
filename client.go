package glide

import (
	"context"
	"errors"

	"github.com/valkeyglide/go-core/internal/resp"
)

// Client is the public entry point: a connection-multiplexed, shard-aware
// handle to a standalone or cluster deployment. It plays the role the
// teacher's top-level Connection/ConnectionPool pair played together,
// collapsed into one type since routing is intrinsic to every request
// here rather than an optional pooling layer on top.
type Client struct {
	cfg      ClientConfiguration
	topology *Topology
	router   *Router
}

// NewClient constructs a Client and connects it, performing an initial
// cluster topology discovery when ClusterMode is set (§3, §4.4).
func NewClient(ctx context.Context, cfg ClientConfiguration) (*Client, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Addresses) == 0 {
		return nil, newClientError(KindConfiguration, "at least one address is required", nil)
	}

	connOptsFor := func(addr string) ConnOpts {
		opts := ConnOpts{
			Addr:         addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			Timeout:      cfg.RequestTimeout,
			Reconnect:    cfg.ReconnectBaseInterval,
			MaxReconnect: cfg.ReconnectMaxInterval,
			Protocol:     cfg.Protocol,
			TLS:          cfg.TLS,
			Logger:       cfg.Logger,
			ClientName:   cfg.ClientName,
		}
		// database_id only makes sense against a single keyspace; cluster
		// slots are never partitioned by database, so it's dropped there.
		if !cfg.ClusterMode {
			opts.DatabaseId = cfg.DatabaseId
		}
		return opts
	}

	var topology *Topology
	if cfg.ClusterMode {
		topology = NewClusterTopology(cfg.TopologyRefreshInterval, connOptsFor, cfg.Logger)
		seedAddr := cfg.Addresses[0]
		seed := &node{addr: seedAddr, role: RoleUnknown}
		topology.byAddr[seedAddr] = seed
		topology.strategy[seedAddr] = &roundRobin{}
		if err := topology.connectNode(ctx, seed); err != nil {
			return nil, err
		}
		if err := topology.Refresh(ctx); err != nil {
			return nil, err
		}
		topology.StartMaintenance()
	} else {
		topology = NewStandaloneTopology(cfg.Addresses[0], connOptsFor, cfg.Logger)
		if err := topology.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return &Client{
		cfg:      cfg,
		topology: topology,
		router:   NewRouter(topology, cfg.AllowOptimisticResubmit),
	}, nil
}

// Do sends one command routed by key and returns its decoded result. key
// may be empty for commands that don't route by key (PING, administrative
// commands against the seed node).
func (c *Client) Do(ctx context.Context, key string, name string, args ...interface{}) (interface{}, error) {
	val, err := c.send(ctx, key, name, args...)
	if err != nil {
		return nil, err
	}
	return val.Result()
}

// Raw behaves like Do but returns the undecoded resp.Value, for callers
// that need Decimal() or access to Kind directly.
func (c *Client) Raw(ctx context.Context, key string, name string, args ...interface{}) (resp.Value, error) {
	return c.send(ctx, key, name, args...)
}

func (c *Client) send(ctx context.Context, key string, name string, args ...interface{}) (resp.Value, error) {
	spec := NewRoutingSpec(key, c.cfg.ReadFrom == PreferReplica, name)
	val, err := c.router.Execute(ctx, spec, name, args...)
	if err != nil {
		return resp.Value{}, err
	}
	if kind, _, _, ok := val.AsError(); ok && kind != ErrNone {
		return val, RequestError{Kind: classifyErrKind(kind), Msg: string(val.Raw)}
	}
	return val, nil
}

func classifyErrKind(kind ErrKind) ErrorKind {
	switch kind {
	case ErrExecAbort:
		return KindExecAbort
	case ErrNoAuth:
		return KindRequest
	default:
		return KindRequest
	}
}

// Begin starts a MULTI transaction on a single connection for key (the
// slot that owns key determines which node the transaction runs against;
// commands touching a different slot cannot be queued in the same
// transaction — this mirrors real cluster-mode MULTI/EXEC limits, §4.3).
func (c *Client) Begin(ctx context.Context, key string) (*Transaction, error) {
	slot := SlotOf(key)
	s := c.topology.shardFor(slot)
	if s == nil || s.primary == nil || s.primary.conn == nil {
		return nil, errors.New("glide: no connection available for transaction")
	}
	return NewTransaction(ctx, s.primary.conn)
}

// DoAllShards fans a command out to every shard's primary (FLUSHALL,
// cluster-wide CONFIG SET), returning one decoded result per shard. In
// standalone mode this degenerates to a single-element slice.
func (c *Client) DoAllShards(ctx context.Context, name string, args ...interface{}) ([]interface{}, error) {
	vals, err := c.router.ExecuteAllShards(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		r, rerr := v.Result()
		if rerr != nil {
			return nil, rerr
		}
		out[i] = r
	}
	return out, nil
}

// Close releases every connection the client holds.
func (c *Client) Close() error {
	return c.topology.Close()
}

type ErrKind = resp.ErrKind
