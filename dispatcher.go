package glide

import (
	"sync"

	"github.com/valkeyglide/go-core/internal/resp"
)

// dispatcher assigns callback ids to in-flight requests and correlates
// each arriving reply back to its Future. RESP carries no wire-level
// request id (unlike the teacher's IPROTO sync field), so correlation
// instead relies on FIFO ordering: replies come back in the order
// requests were written, and the dispatcher pops the oldest pending
// entry off its queue. callback_idx still exists, but purely as a local
// bookkeeping handle a caller can use to cancel a Future on timeout.
// pendingEntry is one reserved slot in the FIFO correlation queue. A
// cancelled entry keeps its place in line (cancelled=true, fut=nil) so a
// still-in-flight reply arriving after the caller gave up on it is
// discarded rather than handed to whatever request happens to be next —
// the slot is released only once the matching reply is read (§4.6 step 8).
type pendingEntry struct {
	fut       *Future
	cancelled bool
}

type dispatcher struct {
	mu      sync.Mutex
	nextId  uint64
	pending []*pendingEntry // FIFO order matches wire order
	byId    map[uint64]*pendingEntry
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		byId: make(map[uint64]*pendingEntry, pendingSlabSize),
	}
}

// register allocates a callback id for fut and enqueues it to await a
// reply. Must be called before the request is written to the wire.
func (d *dispatcher) register(fut *Future) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextId++
	id := d.nextId
	fut.callbackId = id
	entry := &pendingEntry{fut: fut}
	d.byId[id] = entry
	d.pending = append(d.pending, entry)
	return id
}

// next pops the oldest pending slot to correlate with the next reply read
// off the wire. A (nil, true) result means the slot belonged to a
// cancelled request: the reply must still be consumed off the wire (to
// keep every later slot aligned) but has no Future left to resolve.
func (d *dispatcher) next() (*Future, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil, false
	}
	entry := d.pending[0]
	d.pending = d.pending[1:]
	if entry.cancelled {
		return nil, true
	}
	delete(d.byId, entry.fut.callbackId)
	return entry.fut, true
}

// cancel marks a pending slot as cancelled without removing it from the
// FIFO queue, used when a per-request timeout (§6) elapses first. The
// slot stays reserved — and every slot behind it stays correctly aligned
// — until the eventual late reply is read and discarded by next(), per
// testable property #5. Returns false if the reply already arrived (the
// slot is gone by the time cancel runs).
func (d *dispatcher) cancel(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.byId[id]
	if !ok {
		return false
	}
	entry.cancelled = true
	entry.fut = nil
	delete(d.byId, id)
	return true
}

// failAll resolves every still-live pending Future with err, used when
// the connection drops and any reply that might have been in flight is
// now unrecoverable (§4.2: "the request was not guaranteed to have been
// observed by the server"). Already-cancelled slots have no Future to
// resolve and are simply dropped.
func (d *dispatcher) failAll(err error) {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.byId = make(map[uint64]*pendingEntry, pendingSlabSize)
	d.mu.Unlock()

	for _, entry := range pending {
		if entry.fut != nil {
			entry.fut.resolve(resp.Value{}, err)
		}
	}
}
