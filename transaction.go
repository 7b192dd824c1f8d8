package glide

import (
	"context"
	"errors"

	"github.com/valkeyglide/go-core/internal/resp"
)

// Transaction batches commands under MULTI/EXEC on a single connection,
// the glide-side analogue of the teacher's Stream (BEGIN/COMMIT/ROLLBACK
// on one IPROTO session). RESP has no interactive transaction id; instead
// every queued command and the terminating EXEC travel on the same
// Connection so the server can see them as one MULTI block.
type Transaction struct {
	conn    *Connection
	ctx     context.Context
	started bool
	// queued collects one Future per queued command, in queue order, so
	// Exec can drain their "+QUEUED" acknowledgements after writing the
	// whole MULTI body to the wire in one pipelined batch rather than
	// waiting on each command's reply before sending the next (§4.7:
	// "a single pipelined write to one node").
	queued []*Future
}

// NewTransaction begins a MULTI block on conn. The caller must call Exec
// or Discard to end it; leaving a Transaction open leaks the MULTI state
// on the server connection until the connection is closed.
func NewTransaction(ctx context.Context, conn *Connection) (*Transaction, error) {
	t := &Transaction{conn: conn, ctx: ctx}
	val, err := conn.Send(ctx, "MULTI").Get()
	if err != nil {
		return nil, err
	}
	if kind, _, _, ok := val.AsError(); ok && kind != ErrNone {
		return nil, errors.New(string(val.Raw))
	}
	t.started = true
	return t, nil
}

// Queue writes one command to be queued inside the transaction without
// waiting for its "+QUEUED" reply — that reply, along with every other
// queued command's, is only drained once Exec is called, so the whole
// batch goes out as one pipelined write instead of N round trips.
func (t *Transaction) Queue(name string, args ...interface{}) error {
	if !t.started {
		return errors.New("glide: transaction not started")
	}
	t.queued = append(t.queued, t.conn.Send(t.ctx, name, args...))
	return nil
}

// Watch issues WATCH for the given keys before MULTI begins. Per RESP
// semantics WATCH must precede MULTI, so Watch may only be called
// against a fresh Connection, not on a Transaction already inside MULTI.
func Watch(ctx context.Context, conn *Connection, keys ...string) error {
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	val, err := conn.Send(ctx, "WATCH", args...).Get()
	if err != nil {
		return err
	}
	if kind, _, _, ok := val.AsError(); ok && kind != ErrNone {
		return errors.New(string(val.Raw))
	}
	return nil
}

// Exec writes EXEC immediately — before draining any of the queued
// commands' replies — so that MULTI's body and EXEC reach the wire as
// one pipelined batch, then checks every queued command's
// acknowledgement for a queuing-time error (wrong arity, unknown
// command) before trusting EXEC's own result, matching real MULTI/EXEC
// semantics where such an error fails the whole transaction without it
// ever running. A nil Elems with no error indicates a WATCH conflict
// (server replied with a null array), which is not itself a
// KindExecAbort error — callers must check for it explicitly, matching
// real Redis/Valkey behavior (§7).
func (t *Transaction) Exec() ([]resp.Value, error) {
	execFut := t.conn.Send(t.ctx, "EXEC")

	var queueErr error
	for _, fut := range t.queued {
		val, err := fut.Get()
		if err != nil {
			if queueErr == nil {
				queueErr = err
			}
			continue
		}
		if kind, _, _, ok := val.AsError(); ok && kind != ErrNone && queueErr == nil {
			queueErr = errors.New(string(val.Raw))
		}
	}

	val, err := execFut.Get()
	if err != nil {
		return nil, err
	}
	if queueErr != nil {
		return nil, RequestError{Kind: KindExecAbort, Msg: queueErr.Error()}
	}
	if kind, _, _, ok := val.AsError(); ok {
		if kind == ErrExecAbort {
			return nil, RequestError{Kind: KindExecAbort, Msg: string(val.Raw)}
		}
		return nil, errors.New(string(val.Raw))
	}
	if val.IsNilBulk || (val.Kind == resp.KindNull) {
		return nil, nil // WATCH conflict
	}
	return val.Elems, nil
}

// Discard abandons a transaction without executing it.
func (t *Transaction) Discard() error {
	if !t.started {
		return nil
	}
	_, err := t.conn.Send(t.ctx, "DISCARD").Get()
	return err
}
