// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// segmentCapacity is the bounded capacity of one inbound ring. 128 keeps
// segment churn negligible under burst delivery while bounding the memory
// retained by a briefly idle connection.
const segmentCapacity = 128

// segment is one bounded SPSC ring in the inbound chain. next is
// published by the producer only after the first message has been
// enqueued into the new ring, so the consumer never advances past
// undelivered items.
type segment struct {
	ring lfq.SPSC[*Message]
	next atomic.Pointer[segment]
}

func newSegment() *segment {
	s := &segment{}
	s.ring.Init(segmentCapacity)
	return s
}

// inboundQueue is the unbounded, closable, strict-FIFO buffer of received
// messages. Single producer (the I/O driver) offers; single consumer (the
// task pump) polls. A full tail ring links a fresh segment instead of
// blocking or dropping: backpressure throttles the producer's future
// reads through the barrier, never the buffer itself.
//
// size is advisory, maintained here because lfq rings intentionally do
// not count. It drives the barrier's emptiness observations and the
// parked receiver's recheck.
type inboundQueue struct {
	head   *segment // consumer-owned
	tail   *segment // producer-owned
	size   atomix.Uint32
	closed atomix.Uint32
	waiter atomic.Pointer[func()]
}

func (q *inboundQueue) init() {
	s := newSegment()
	q.head, q.tail = s, s
}

// offer appends a message. Reports whether the queue was empty
// immediately before this arrival, or ErrClosed once the queue has been
// closed (the message is then still owned by the caller). Never blocks.
func (q *inboundQueue) offer(m *Message) (wasEmpty bool, err error) {
	if q.closed.Load() != 0 {
		return false, ErrClosed
	}
	wasEmpty = q.size.Add(1) == 1
	tail := q.tail
	if tail.ring.Enqueue(&m) != nil {
		seg := newSegment()
		seg.ring.Enqueue(&m)
		tail.next.Store(seg)
		q.tail = seg
	}
	return wasEmpty, nil
}

// poll removes the oldest message. Reports whether the queue is empty
// immediately after this removal. Returns iox.ErrWouldBlock when nothing
// is buffered, or ErrClosed once the queue is both closed and drained —
// close never discards buffered messages.
func (q *inboundQueue) poll() (m *Message, nowEmpty bool, err error) {
	for {
		head := q.head
		m, err = head.ring.Dequeue()
		if err == nil {
			return m, q.size.Add(^uint32(0)) == 0, nil
		}
		if next := head.next.Load(); next != nil {
			q.head = next
			continue
		}
		if q.closed.Load() != 0 && q.size.Load() == 0 {
			return nil, true, ErrClosed
		}
		return nil, true, iox.ErrWouldBlock
	}
}

// close revokes the ability to add new messages. Idempotent, terminal.
func (q *inboundQueue) close() {
	q.closed.CompareAndSwap(0, 1)
}

// ready reports whether a parked receiver would make progress: something
// is buffered, or the closed condition became observable.
func (q *inboundQueue) ready() bool {
	return q.size.Load() > 0 || q.closed.Load() != 0
}

// setWaiter parks the single receiver wake. The slot is known empty: a
// receiver only parks after its previous wake was consumed.
func (q *inboundQueue) setWaiter(w *func()) {
	q.waiter.Store(w)
}

// takeWaiter removes and returns the parked receiver wake, if any. The
// atomic swap makes wake delivery exactly-once under races between
// offer, close, cancellation, and the receiver stealing its own park.
func (q *inboundQueue) takeWaiter() *func() {
	return q.waiter.Swap(nil)
}
