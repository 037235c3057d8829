// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// Conn is the contract the external I/O engine provides per connection.
// The bridge does not own the connection; it only toggles read delivery
// and issues non-blocking writes.
type Conn interface {
	// SetAutoRead enables or disables automatic delivery of inbound
	// messages. Engines that confine connection calls to their driver
	// thread should marshal internally or hand the adapter a Dispatcher
	// bound to that thread.
	SetAutoRead(enabled bool)

	// Writable reports, point in time, whether a write can be accepted
	// without unbounded buffering on the send side.
	Writable() bool

	// Write issues a non-blocking write. complete must be invoked
	// exactly once, from any thread, with nil on success or the failure
	// cause. Adapter.Shutdown joins the task and therefore relies on
	// every issued write eventually completing.
	Write(m *Message, complete func(error))
}

// Dispatcher schedules cooperative task resumption. Driver events resume
// parked tasks through the adapter's dispatcher, so an engine can confine
// all task execution to its event-processing thread.
type Dispatcher interface {
	Dispatch(fn func())
}

// Inline runs dispatched functions immediately on the calling goroutine.
// With Inline, parked tasks resume directly on the driver thread that
// woke them.
type Inline struct{}

// Dispatch implements Dispatcher.
func (Inline) Dispatch(fn func()) { fn() }

// RunLoop is a single-goroutine dispatcher draining a lock-free MPSC run
// queue with adaptive backoff. It serializes task execution onto one
// thread of control without per-dispatch channel or mutex traffic.
type RunLoop struct {
	q      lfq.Queue[func()]
	closed atomix.Uint32
	done   atomix.Uint32
}

// NewRunLoop creates a running dispatcher with the given run-queue capacity
// (rounded up to a power of two by lfq).
func NewRunLoop(capacity int) *RunLoop {
	l := &RunLoop{q: lfq.BuildMPSC[func()](lfq.New(capacity).SingleConsumer())}
	go l.run()
	return l
}

// Dispatch implements Dispatcher. A full run queue is waited out with
// backoff. After Close, fn runs inline on the caller so that late wakes
// cannot be lost.
func (l *RunLoop) Dispatch(fn func()) {
	var bo iox.Backoff
	for l.closed.Load() == 0 {
		if l.q.Enqueue(&fn) == nil {
			return
		}
		bo.Wait()
	}
	fn()
}

// Close stops the loop after the run queue drains and waits for the loop
// goroutine to exit. Must not be called from the loop goroutine itself.
func (l *RunLoop) Close() {
	l.closed.CompareAndSwap(0, 1)
	var bo iox.Backoff
	for l.done.Load() == 0 {
		bo.Wait()
	}
}

func (l *RunLoop) run() {
	var bo iox.Backoff
	for {
		fn, err := l.q.Dequeue()
		if err == nil {
			bo.Reset()
			fn()
			continue
		}
		if l.closed.Load() != 0 {
			l.done.Store(1)
			return
		}
		bo.Wait()
	}
}
