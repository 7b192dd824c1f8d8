package glide

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// LogEvent is one structured, loggable occurrence in a connection's
// lifecycle. The shape is carried from the teacher's connection_events.go
// unchanged; only the concrete event set is domain-specific.
type LogEvent interface {
	EventName() string
	Message() string
	LogLevel() slog.Level
	LogAttrs() []slog.Attr
}

type baseEvent struct {
	addr      net.Addr
	EventTime time.Time
}

func newBaseEvent(addr net.Addr) baseEvent {
	return baseEvent{
		addr:      addr,
		EventTime: time.Now(),
	}
}

func (e baseEvent) baseAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("component", "glide.connection"),
		slog.Time("event_time", e.EventTime),
	}
	if e.addr != nil {
		attrs = append(attrs, slog.String("addr", e.addr.String()))
	}
	return attrs
}

// ConnectionFailedEvent fires when a dial or handshake attempt fails.
type ConnectionFailedEvent struct {
	baseEvent
	Error error
}

func (e ConnectionFailedEvent) EventName() string    { return "connection_failed" }
func (e ConnectionFailedEvent) Message() string      { return "Connection failed" }
func (e ConnectionFailedEvent) LogLevel() slog.Level { return slog.LevelError }
func (e ConnectionFailedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	return attrs
}

// UnexpectedResultIdEvent fires when a reply arrives while no pending
// slot is left to correlate it with; the connection is then failed
// (§4.2). Timed-out requests keep a tombstoned slot, so their late
// replies do not trigger this event.
type UnexpectedResultIdEvent struct {
	baseEvent
	RequestId uint64
}

func (e UnexpectedResultIdEvent) EventName() string { return "unexpected_result_id" }
func (e UnexpectedResultIdEvent) Message() string {
	return fmt.Sprintf("Received response with unexpected callback id %d", e.RequestId)
}
func (e UnexpectedResultIdEvent) LogLevel() slog.Level { return slog.LevelWarn }
func (e UnexpectedResultIdEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.Uint64("request_id", e.RequestId),
	)
	return attrs
}

// TopologyRefreshFailedEvent fires when CLUSTER SLOTS could not be sent
// or its reply could not be parsed during a topology refresh (§4.4).
type TopologyRefreshFailedEvent struct {
	baseEvent
	Error error
}

func (e TopologyRefreshFailedEvent) EventName() string { return "topology_refresh_failed" }
func (e TopologyRefreshFailedEvent) Message() string {
	return fmt.Sprintf("Failed to refresh cluster topology: %s", e.Error)
}
func (e TopologyRefreshFailedEvent) LogLevel() slog.Level { return slog.LevelWarn }
func (e TopologyRefreshFailedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("error", e.Error.Error()),
	)
	return attrs
}

// PubSubPushUnsupportedEvent fires when a push-type reply (RESP3 '>') or
// a pub/sub message arrives on a connection's single-response path.
// Pub/sub streaming is explicitly out of scope (§1 Non-goals); such a
// push is logged and dropped rather than routed anywhere.
type PubSubPushUnsupportedEvent struct {
	baseEvent
	RequestId uint64
}

func (e PubSubPushUnsupportedEvent) EventName() string { return "pubsub_push_unsupported" }
func (e PubSubPushUnsupportedEvent) Message() string {
	return fmt.Sprintf("Unsupported push-type reply for callback %d", e.RequestId)
}
func (e PubSubPushUnsupportedEvent) LogLevel() slog.Level { return slog.LevelWarn }
func (e PubSubPushUnsupportedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.Uint64("request_id", e.RequestId),
	)
	return attrs
}

type ConnectedEvent struct {
	baseEvent
}

func (e ConnectedEvent) EventName() string    { return "connected" }
func (e ConnectedEvent) Message() string      { return "Connected to server" }
func (e ConnectedEvent) LogLevel() slog.Level { return slog.LevelInfo }
func (e ConnectedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs, slog.String("event", e.EventName()))
	return attrs
}

type DisconnectedEvent struct {
	baseEvent
	Reason error
}

func (e DisconnectedEvent) EventName() string { return "disconnected" }
func (e DisconnectedEvent) Message() string {
	if e.Reason != nil {
		return fmt.Sprintf("Disconnected from server: %s", e.Reason)
	}
	return "Disconnected from server"
}
func (e DisconnectedEvent) LogLevel() slog.Level { return slog.LevelWarn }
func (e DisconnectedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	if e.Reason != nil {
		attrs = append(attrs, slog.String("reason", e.Reason.Error()))
	}
	return attrs
}

type ShutdownEvent struct {
	baseEvent
}

func (e ShutdownEvent) EventName() string    { return "shutdown" }
func (e ShutdownEvent) Message() string      { return "Client shutting down" }
func (e ShutdownEvent) LogLevel() slog.Level { return slog.LevelInfo }
func (e ShutdownEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs, slog.String("event", e.EventName()))
	return attrs
}

type ClosedEvent struct {
	baseEvent
}

func (e ClosedEvent) EventName() string    { return "closed" }
func (e ClosedEvent) Message() string      { return "Connection closed" }
func (e ClosedEvent) LogLevel() slog.Level { return slog.LevelInfo }
func (e ClosedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs, slog.String("event", e.EventName()))
	return attrs
}

// TopologyEvent fires when the slot map is refreshed (Event "refreshed",
// §4.4). Message also has text for "added" and "removed" events; the
// topology itself emits only "refreshed".
type TopologyEvent struct {
	baseEvent
	NodeCount   int
	ActiveNodes int
	Event       string
}

func (e TopologyEvent) EventName() string { return "topology_" + e.Event }
func (e TopologyEvent) Message() string {
	switch e.Event {
	case "added":
		return "Node added to topology"
	case "removed":
		return "Node removed from topology"
	case "refreshed":
		return "Topology refreshed"
	default:
		return "Topology event: " + e.Event
	}
}
func (e TopologyEvent) LogLevel() slog.Level { return slog.LevelInfo }
func (e TopologyEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.Int("node_count", e.NodeCount),
		slog.Int("active_nodes", e.ActiveNodes),
		slog.String("topology_event", e.Event),
	)
	return attrs
}

type TimeoutEvent struct {
	baseEvent
	RequestId uint64
	Timeout   time.Duration
}

func (e TimeoutEvent) EventName() string { return "timeout" }
func (e TimeoutEvent) Message() string {
	return fmt.Sprintf("Request %d timed out after %s", e.RequestId, e.Timeout)
}
func (e TimeoutEvent) LogLevel() slog.Level { return slog.LevelWarn }
func (e TimeoutEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.Uint64("request_id", e.RequestId),
		slog.String("timeout", e.Timeout.String()),
	)
	return attrs
}
