package glide

import (
	"context"
	"io"
	"log"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"
)

// Logger is the user-pluggable sink for connection lifecycle events. The
// shape (one Report method taking a LogEvent and the originating
// Connection) is carried unchanged from the teacher; only the event types
// are domain-specific (see connection_events.go).
type Logger interface {
	Report(event LogEvent, conn *Connection)
}

// SlogLogger adapts Logger to log/slog, the ambient structured-logging
// choice already used by the teacher's own connection_events.go.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func NewSlogLogger(logger *slog.Logger) SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return SlogLogger{
		logger: logger,
		ctx:    context.Background(),
	}
}

func (l *SlogLogger) WithContext(ctx context.Context) SlogLogger {
	return SlogLogger{
		logger: l.logger,
		ctx:    ctx,
	}
}

func (l SlogLogger) Report(event LogEvent, conn *Connection) {
	attrs := event.LogAttrs()

	if conn != nil {
		keys := make(map[string]bool, len(attrs))
		for _, a := range attrs {
			keys[a.Key] = true
		}

		if !keys["connection_state"] {
			attrs = append(attrs, slog.String("connection_state", conn.stateToString()))
		}
		if conn.opts.MaxReconnects > 0 && !keys["max_reconnects"] {
			attrs = append(attrs, slog.Uint64("max_reconnects", uint64(conn.opts.MaxReconnects)))
		}
		if conn.opts.Reconnect > 0 && !keys["reconnect_interval"] {
			attrs = append(attrs, slog.String("reconnect_interval", conn.opts.Reconnect.String()))
		}
		if conn.opts.Timeout > 0 && !keys["request_timeout"] {
			attrs = append(attrs, slog.String("request_timeout", conn.opts.Timeout.String()))
		}
	}

	l.logger.LogAttrs(l.ctx, event.LogLevel(), event.Message(), attrs...)
}

// SimpleLogger is a minimal stdlib-log sink, kept for parity with the
// teacher's own plain-log fallback.
type SimpleLogger struct{}

func (l SimpleLogger) Report(event LogEvent, conn *Connection) {
	attrs := event.LogAttrs()

	log.Printf("[%s] %s [event=%s]", event.LogLevel(), event.Message(), event.EventName())

	for _, attr := range attrs {
		if attr.Key == "error" {
			log.Printf("  Error: %v", attr.Value.Any())
		} else if attr.Key == "request_id" {
			log.Printf("  Request ID: %v", attr.Value.Any())
		}
	}
}

// MsgpackTraceLogger encodes each event as a compact msgpack map and
// writes it to an arbitrary sink (a file, a unix socket, a ring buffer),
// for out-of-band diagnostic tracing that shouldn't pay text-formatting
// cost on the hot path. This is the diagnostic envelope the internal
// protobuf-envelope Open Question (§4.1/§6) resolved to in a native Go
// client with no FFI boundary to frame a protobuf message across.
type MsgpackTraceLogger struct {
	enc *msgpack.Encoder
}

func NewMsgpackTraceLogger(w io.Writer) MsgpackTraceLogger {
	return MsgpackTraceLogger{enc: msgpack.NewEncoder(w)}
}

func (l MsgpackTraceLogger) Report(event LogEvent, conn *Connection) {
	trace := make(map[string]interface{}, 4)
	trace["event"] = event.EventName()
	trace["level"] = event.LogLevel().String()
	trace["message"] = event.Message()
	for _, attr := range event.LogAttrs() {
		trace[attr.Key] = attr.Value.Any()
	}
	// Best-effort: a trace sink is diagnostic, not load-bearing, so an
	// encode failure here must never propagate to the caller's request
	// path.
	_ = l.enc.Encode(trace)
}
