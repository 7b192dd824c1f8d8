package glide

import (
	"github.com/valkeyglide/go-core/internal/resp"
)

// Future is a handle to an in-flight request, returned by Connection.Send.
// The shape — a channel closed on arrival plus a cached result/error pair —
// is carried from the teacher's future.go; the payload is a decoded RESP
// Value instead of a msgpack-decoded Response.
type Future struct {
	callbackId uint64
	ready      chan struct{}
	val        resp.Value
	err        error
}

func newFuture(callbackId uint64) *Future {
	return &Future{
		callbackId: callbackId,
		ready:      make(chan struct{}),
	}
}

// newErrorFuture returns an already-resolved Future carrying err, for
// requests that fail before ever reaching the wire (bad argument,
// connection closed).
func newErrorFuture(err error) *Future {
	f := &Future{ready: make(chan struct{})}
	f.err = err
	close(f.ready)
	return f
}

// Get blocks until the request completes and returns the decoded value.
func (f *Future) Get() (resp.Value, error) {
	<-f.ready
	return f.val, f.err
}

// WaitChan returns a channel that closes when the Future resolves, so
// callers can select{} over several in-flight requests.
func (f *Future) WaitChan() <-chan struct{} {
	return f.ready
}

func (f *Future) resolve(val resp.Value, err error) {
	f.val, f.err = val, err
	close(f.ready)
}
