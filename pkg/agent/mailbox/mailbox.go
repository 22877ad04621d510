// Package mailbox implements the request-reply concurrency substrate
// used by the agent loop, and usable by any other single-writer actor in
// the runtime: a bounded multi-producer/
// single-consumer channel carrying a payload plus a one-shot reply slot.
package mailbox

import "context"

const defaultCapacity = 16

// Request wraps a payload with a one-shot reply channel. The responder
// must send exactly one reply; the reply channel has capacity 1 so a
// responder never blocks on a caller that has given up.
type Request[Req any, Res any] struct {
	Payload Req
	reply   chan Res
}

// Reply delivers the outcome to the waiting sender. Calling Reply more
// than once on the same Request is a programming error; only the first
// call has any effect.
func (r *Request[Req, Res]) Reply(res Res) {
	select {
	case r.reply <- res:
	default:
	}
}

// Mailbox is the receive side of a bounded actor channel. The zero value
// is not usable; construct with New.
type Mailbox[Req any, Res any] struct {
	ch chan *Request[Req, Res]
}

// Sender is the clonable send side of a Mailbox. Multiple senders may
// share one Mailbox; the Mailbox itself is not clonable.
type Sender[Req any, Res any] struct {
	ch chan *Request[Req, Res]
}

// New creates a Mailbox with the given capacity. A capacity of 0 uses the
// runtime default of 16, matching the bounded actor pattern used
// throughout this runtime.
func New[Req any, Res any](capacity int) (*Mailbox[Req, Res], Sender[Req, Res]) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	ch := make(chan *Request[Req, Res], capacity)
	return &Mailbox[Req, Res]{ch: ch}, Sender[Req, Res]{ch: ch}
}

// Recv blocks until a request arrives or ctx is cancelled. The bool result
// is false if the mailbox channel was closed.
func (m *Mailbox[Req, Res]) Recv(ctx context.Context) (*Request[Req, Res], bool) {
	select {
	case req, ok := <-m.ch:
		return req, ok
	case <-ctx.Done():
		return nil, false
	}
}

// Close closes the underlying channel. A SendAndAwait on a closed mailbox
// returns (nil, false).
func (m *Mailbox[Req, Res]) Close() {
	close(m.ch)
}

// SendAndAwait submits payload and blocks for the responder's reply. It
// returns (nil, false) if either leg of the channel closes, or ctx is
// cancelled, before a reply is delivered — mirroring the original
// send_and_await's Optional<Result> contract where None signals a closed
// channel rather than a delivered outcome.
func (s Sender[Req, Res]) SendAndAwait(ctx context.Context, payload Req) (*Res, bool) {
	req := &Request[Req, Res]{Payload: payload, reply: make(chan Res, 1)}

	sent := func() (sent bool) {
		// A send on a closed mailbox panics; report it as a closed leg.
		defer func() {
			if recover() != nil {
				sent = false
			}
		}()
		select {
		case s.ch <- req:
			return true
		case <-ctx.Done():
			return false
		}
	}()
	if !sent {
		return nil, false
	}

	select {
	case res, ok := <-req.reply:
		if !ok {
			return nil, false
		}
		return &res, true
	case <-ctx.Done():
		return nil, false
	}
}
