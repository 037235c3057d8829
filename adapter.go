// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// Adapter bundles the per-connection bridge state in a single owned
// struct: the inbound buffer, the readability barrier, the
// pending-writer slot, the close-handler list, and the set-once task
// handle. Driver-side entry points (Deliver, NotifyWritable, Close) are
// called by the I/O engine from its own thread(s); everything else is
// consumer-facing.
type Adapter[R any] struct {
	conn Conn
	disp Dispatcher

	queue   inboundQueue
	barrier readBarrier
	writer  pendingWriter

	task atomic.Pointer[Task[R]]

	mu          sync.Mutex
	handlers    []func() error
	ranHandlers atomix.Uint32

	serial Serial
}

// NewAdapter creates the bridge for one connection. disp receives every
// task resumption; nil selects Inline. Engines that confine connection
// calls to a driver thread should pass a RunLoop bound to it.
func NewAdapter[R any](conn Conn, disp Dispatcher) *Adapter[R] {
	if disp == nil {
		disp = Inline{}
	}
	a := &Adapter[R]{
		conn:   conn,
		disp:   disp,
		serial: nextSerial(),
	}
	a.queue.init()
	a.barrier.conn = conn
	return a
}

// Serial returns the serial number assigned to this adapter.
func (a *Adapter[R]) Serial() Serial {
	return a.serial
}

// Start launches the cooperative task. The task handle is assigned and
// observable — from any thread — before body runs: the handle is
// published first and body is only invoked inside the first dispatched
// pump step. Start panics if the adapter already has a task; the handle
// is set precisely once.
func (a *Adapter[R]) Start(body func() kont.Eff[R]) *Task[R] {
	t := &Task[R]{adapter: a}
	if !a.task.CompareAndSwap(nil, t) {
		panic("pump: adapter already started")
	}
	a.disp.Dispatch(func() {
		result, susp := kont.StepExpr(kont.Reify(body()))
		if susp == nil {
			t.finish(result, nil)
			return
		}
		t.pump(susp)
	})
	return t
}

// Task returns the owning task handle, or nil before Start.
func (a *Adapter[R]) Task() *Task[R] {
	return a.task.Load()
}

// IsActive reports whether the owning task is running: started and not
// yet completed.
func (a *Adapter[R]) IsActive() bool {
	t := a.task.Load()
	return t != nil && !t.Done()
}

// Scope returns the consumer-facing facade.
func (a *Adapter[R]) Scope() Scope[R] {
	return Scope[R]{a: a}
}

// Deliver accepts one inbound message from the engine. Ordering of
// calls is the ordering a receiver observes. The message is released
// here if the inbound stream was already closed; otherwise ownership
// moves to the buffer until a receive takes it.
func (a *Adapter[R]) Deliver(m *Message) {
	wasEmpty, err := a.queue.offer(m)
	if err != nil {
		m.Release()
		return
	}
	a.barrier.observe(wasEmpty)
	if w := a.queue.takeWaiter(); w != nil {
		(*w)()
	}
}

// NotifyWritable signals that the connection accepts writes again,
// waking the pending sender, if any.
func (a *Adapter[R]) NotifyWritable() {
	if w := a.writer.take(); w != nil {
		(*w)()
	}
}

// Close closes the inbound stream: no further messages are accepted,
// buffered ones remain retrievable, and a pending or future plain
// receive completes with ErrClosed. Idempotent.
func (a *Adapter[R]) Close() {
	a.queue.close()
	if w := a.queue.takeWaiter(); w != nil {
		(*w)()
	}
}

// RegisterCloseHandler appends h to the cleanup list. Handlers run in
// registration order.
func (a *Adapter[R]) RegisterCloseHandler(h func() error) {
	a.mu.Lock()
	a.handlers = append(a.handlers, h)
	a.mu.Unlock()
}

// RunCloseHandlers invokes the registered handlers sequentially, in
// registration order, with no error isolation: the first handler error
// aborts the remainder and is returned. The run latches — cancellation
// unwinds and engine-driven teardown cannot double-invoke the handlers;
// later calls return nil.
func (a *Adapter[R]) RunCloseHandlers() error {
	if !a.ranHandlers.CompareAndSwap(0, 1) {
		return nil
	}
	a.mu.Lock()
	handlers := a.handlers
	a.handlers = nil
	a.mu.Unlock()
	for _, h := range handlers {
		if err := h(); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown cancels the owning task and waits for it to fully terminate.
// Forced teardown, typically on connection close. A no-op before Start.
func (a *Adapter[R]) Shutdown() {
	t := a.task.Load()
	if t == nil {
		return
	}
	t.Cancel()
	t.Wait()
}
