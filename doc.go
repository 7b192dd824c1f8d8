// Package glide implements a client for a Redis/Valkey-compatible
// key/value server, supporting both standalone and cluster (sharded)
// deployments.
//
// Each server node is reached over a single multiplexed, pipelined
// Connection (connection.go): one writer goroutine coalesces outgoing
// commands, one reader goroutine decodes replies, and a dispatcher
// (dispatcher.go) correlates replies to callers purely by FIFO order,
// since RESP carries no wire-level request id.
//
// Cluster mode tracks the slot-to-shard map in a Topology
// (topology.go, clusterslots.go) and resolves each request's target node
// through a Router (router.go), following MOVED/ASK redirection and
// refreshing topology on CLUSTERDOWN/TRYAGAIN. Slot hashing (slot.go)
// matches the server's own CRC16 computation exactly.
//
// Client (client.go) is the package's main entry point; Transaction
// (transaction.go) layers MULTI/EXEC/WATCH on top of a single
// Connection.
package glide
