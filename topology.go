package glide

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// NodeRole mirrors the teacher's pool.Role: whether a node is currently
// serving as a shard's primary or one of its replicas.
type NodeRole uint32

const (
	RoleUnknown NodeRole = iota
	RolePrimary
	RoleReplica
)

// node is one server endpoint participating in the deployment.
type node struct {
	addr string
	role NodeRole
	conn *Connection
}

// shard is one cluster shard: a slot range owned by one primary, served
// also by zero or more replicas.
type shard struct {
	startSlot int
	endSlot   int
	primary   *node
	replicas  []*node
}

func (s *shard) owns(slot int) bool {
	return slot >= s.startSlot && slot <= s.endSlot
}

// Topology tracks the cluster's slot-to-shard map (or, in standalone
// mode, a single implicit shard covering every slot) and the connection
// to each node. It plays the role the teacher's pool.ConnectionPool
// played for a set of Tarantool replicasets, adapted from slot-range
// ownership instead of every node serving every key.
type Topology struct {
	mu       sync.RWMutex
	cluster  bool
	shards   []*shard
	byAddr   map[string]*node
	strategy map[string]*roundRobin // replica round-robin, keyed by shard primary addr

	refreshInterval time.Duration
	connOpts        func(addr string) ConnOpts
	logger          Logger

	// refreshing/refreshDone coalesce concurrent Refresh triggers (a
	// MOVED, a TRYAGAIN, the scheduled tick) into a single in-flight
	// CLUSTER SLOTS round trip and slot-map swap (§4.4).
	refreshing     bool
	refreshDone    chan struct{}
	lastRefreshErr error

	stopCh chan struct{} // closed by Close to stop the maintenance loop
}

// roundRobin cycles through a shard's Ready replicas, falling back to the
// primary when none are available — the Mode/Role split from the
// teacher's pool package, reduced to the two deployment-relevant roles.
type roundRobin struct {
	mu      sync.Mutex
	current int
}

func (r *roundRobin) next(candidates []*node) *node {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(candidates) == 0 {
		return nil
	}
	r.current = (r.current + 1) % len(candidates)
	return candidates[r.current]
}

// NewStandaloneTopology builds a single-shard topology covering every
// slot, for non-cluster deployments (§3, standalone mode).
func NewStandaloneTopology(addr string, connOpts func(string) ConnOpts, logger Logger) *Topology {
	n := &node{addr: addr, role: RolePrimary}
	s := &shard{startSlot: 0, endSlot: NumSlots - 1, primary: n}
	return &Topology{
		cluster:  false,
		shards:   []*shard{s},
		byAddr:   map[string]*node{addr: n},
		strategy: map[string]*roundRobin{addr: {}},
		connOpts: connOpts,
		logger:   logger,
	}
}

// NewClusterTopology builds an empty cluster topology; call Refresh to
// populate it from CLUSTER SLOTS against a seed node.
func NewClusterTopology(refreshInterval time.Duration, connOpts func(string) ConnOpts, logger Logger) *Topology {
	return &Topology{
		cluster:         true,
		byAddr:          make(map[string]*node),
		strategy:        make(map[string]*roundRobin),
		refreshInterval: refreshInterval,
		connOpts:        connOpts,
		logger:          logger,
		stopCh:          make(chan struct{}),
	}
}

// Connect dials every node currently known to the topology.
func (t *Topology) Connect(ctx context.Context) error {
	t.mu.RLock()
	nodes := make([]*node, 0, len(t.byAddr))
	for _, n := range t.byAddr {
		nodes = append(nodes, n)
	}
	t.mu.RUnlock()

	for _, n := range nodes {
		if err := t.connectNode(ctx, n); err != nil {
			return fmt.Errorf("glide: connecting to %s: %w", n.addr, err)
		}
	}
	return nil
}

func (t *Topology) connectNode(ctx context.Context, n *node) error {
	opts := t.connOpts(n.addr)
	conn := NewConnection(opts)
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	n.conn = conn
	t.mu.Unlock()
	return nil
}

// Refresh re-discovers cluster topology via CLUSTER SLOTS against any
// currently known node, triggered per §4.4 (initial connect, on MOVED,
// on CLUSTERDOWN, or on the scheduled interval). Concurrent triggers are
// coalesced: a caller that arrives while a refresh is already in flight
// waits for that one to finish and shares its result, instead of
// starting a redundant CLUSTER SLOTS round trip of its own (§4.4, "a
// concurrent flood of MOVEDs triggers at most one refresh in flight").
func (t *Topology) Refresh(ctx context.Context) error {
	if !t.cluster {
		return nil
	}

	t.mu.Lock()
	if t.refreshing {
		done := t.refreshDone
		t.mu.Unlock()
		<-done
		t.mu.RLock()
		err := t.lastRefreshErr
		t.mu.RUnlock()
		return err
	}
	t.refreshing = true
	done := make(chan struct{})
	t.refreshDone = done
	t.mu.Unlock()

	err := t.doRefresh(ctx)

	t.mu.Lock()
	t.lastRefreshErr = err
	t.refreshing = false
	t.refreshDone = nil
	t.mu.Unlock()
	close(done)

	return err
}

func (t *Topology) doRefresh(ctx context.Context) error {
	t.mu.RLock()
	var seed *node
	for _, n := range t.byAddr {
		if n.conn != nil && n.conn.Ready() {
			seed = n
			break
		}
	}
	t.mu.RUnlock()

	if seed == nil {
		return newClientError(KindConnection, "no connected node available to refresh topology", nil)
	}

	val, err := seed.conn.Send(ctx, "CLUSTER", "SLOTS").Get()
	if err != nil {
		t.report(TopologyRefreshFailedEvent{Error: err})
		return err
	}

	shards, byAddr, err := parseClusterSlots(val)
	if err != nil {
		t.report(TopologyRefreshFailedEvent{Error: err})
		return err
	}

	t.mu.Lock()
	oldByAddr := t.byAddr
	t.shards = shards
	t.byAddr = byAddr
	for addr := range byAddr {
		if _, ok := t.strategy[addr]; !ok {
			t.strategy[addr] = &roundRobin{}
		}
	}
	t.mu.Unlock()

	// Preserve existing connections for nodes that survived the refresh;
	// dial any brand-new ones.
	for addr, n := range byAddr {
		if old, ok := oldByAddr[addr]; ok && old.conn != nil && old.conn.Ready() {
			n.conn = old.conn
			continue
		}
		if err := t.connectNode(ctx, n); err != nil {
			t.report(ConnectionFailedEvent{Error: err})
		}
	}
	for addr, old := range oldByAddr {
		if _, stillPresent := byAddr[addr]; !stillPresent && old.conn != nil {
			old.conn.Close()
		}
	}

	t.report(TopologyEvent{NodeCount: len(byAddr), ActiveNodes: countReady(byAddr), Event: "refreshed"})
	return nil
}

// StartMaintenance starts the scheduled topology refresh (§4.4 trigger
// (d)) and idle-connection reaping (§4.2) for a cluster topology. No-op
// for standalone, which has no scheduled refresh and only one connection
// to ever idle out.
func (t *Topology) StartMaintenance() {
	if !t.cluster || t.refreshInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(t.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Refresh(context.Background())
				t.reapIdle()
			case <-t.stopCh:
				return
			}
		}
	}()
}

// reapIdle closes replica connections that have sat unused longer than
// defaultIdleCloseAfter. The primary is never reaped — it's needed for
// every write and most reads. A reaped replica is simply not Ready; the
// router already falls back to the primary when no replica is Ready, and
// the next scheduled Refresh redials it.
func (t *Topology) reapIdle() {
	t.mu.RLock()
	shards := append([]*shard(nil), t.shards...)
	t.mu.RUnlock()

	for _, s := range shards {
		for _, r := range s.replicas {
			if r.conn != nil && r.conn.Ready() && r.conn.IdleFor() > defaultIdleCloseAfter {
				r.conn.Close()
			}
		}
	}
}

func countReady(byAddr map[string]*node) int {
	n := 0
	for _, v := range byAddr {
		if v.conn != nil && v.conn.Ready() {
			n++
		}
	}
	return n
}

func (t *Topology) report(ev LogEvent) {
	if t.logger != nil {
		t.logger.Report(ev, nil)
	}
}

// shardFor returns the shard owning slot.
func (t *Topology) shardFor(slot int) *shard {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.shards {
		if s.owns(slot) {
			return s
		}
	}
	return nil
}

// nodeByAddr looks up (or lazily connects) a node by address, used for
// MOVED/ASK redirection targets that may not yet be part of the slot map
// (§4.5).
func (t *Topology) nodeByAddr(ctx context.Context, addr string) (*node, error) {
	t.mu.RLock()
	n, ok := t.byAddr[addr]
	t.mu.RUnlock()
	if ok && n.conn != nil && n.conn.Ready() {
		return n, nil
	}

	newNode := &node{addr: addr, role: RoleUnknown}
	if err := t.connectNode(ctx, newNode); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.byAddr[addr] = newNode
	if _, ok := t.strategy[addr]; !ok {
		t.strategy[addr] = &roundRobin{}
	}
	t.mu.Unlock()
	return newNode, nil
}

// Close closes every connection the topology owns and stops the
// maintenance loop, if one was started.
func (t *Topology) Close() error {
	if t.stopCh != nil {
		close(t.stopCh)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.byAddr {
		if n.conn != nil {
			n.conn.Close()
		}
	}
	return nil
}
