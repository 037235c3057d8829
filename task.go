// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import (
	"errors"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Task is the per-connection cooperative worker: a kont protocol stepped
// one effect at a time by the pump loop. At any instant the task is
// either running on some thread, parked at a suspension point (empty
// inbound buffer, unwritable connection, or write in flight), or done.
// Ownership of the suspension chain passes through single-slot atomic
// handoffs, so exactly one thread advances the protocol at a time —
// that is what makes the task cooperative.
type Task[R any] struct {
	adapter *Adapter[R]

	cancel    atomix.Uint32
	finishing atomix.Uint32
	done      atomix.Uint32

	result R
	err    error

	completions atomic.Pointer[completionNode]
}

// completionNode is one registered completion callback in the lock-free
// notification list. completionsSealed marks a drained list: late
// registrations run immediately.
type completionNode struct {
	fn   func()
	next *completionNode
}

var completionsSealed = &completionNode{}

// Done reports whether the task has completed (success, failure, or
// cancellation).
func (t *Task[R]) Done() bool {
	return t.done.Load() != 0
}

// Err returns the completion error: nil on success, ErrCanceled after
// cancellation, ErrClosed when a receive hit the closed drained inbound
// stream, or the propagated abort cause. Valid once Done reports true.
func (t *Task[R]) Err() error {
	return t.err
}

// Result returns the protocol's result. Valid once Done reports true
// with a nil Err.
func (t *Task[R]) Result() R {
	return t.result
}

// Cancel requests cancellation and wakes any parked suspension so the
// unwind proceeds. Idempotent; cancelling a finished task is a no-op.
// The protocol unwinds with ErrCanceled at its next suspension point —
// code between suspension points still runs.
func (t *Task[R]) Cancel() {
	if !t.cancel.CompareAndSwap(0, 1) {
		return
	}
	if t.done.Load() != 0 {
		return
	}
	a := t.adapter
	if w := a.queue.takeWaiter(); w != nil {
		(*w)()
		return
	}
	if w := a.writer.take(); w != nil {
		(*w)()
	}
}

// Wait blocks until the task completes, backing off adaptively. Join
// semantics for forced teardown; a task parked on a write completion
// relies on the engine's exactly-once completion contract.
func (t *Task[R]) Wait() {
	var bo iox.Backoff
	for t.done.Load() == 0 {
		bo.Wait()
	}
}

// OnComplete registers fn to run when the task completes, from whichever
// thread drives the completion. If the task is already done, fn runs
// immediately on the caller. Callbacks run exactly once each, in no
// guaranteed order. This is the lifetime-coupling hook; see CoupleMany.
func (t *Task[R]) OnComplete(fn func()) {
	n := &completionNode{fn: fn}
	for {
		head := t.completions.Load()
		if head == completionsSealed {
			fn()
			return
		}
		n.next = head
		if t.completions.CompareAndSwap(head, n) {
			break
		}
	}
	if t.done.Load() != 0 {
		t.sealCompletions()
	}
}

func (t *Task[R]) canceled() bool {
	return t.cancel.Load() != 0
}

// finish latches the completion outcome exactly once, runs the
// cancellation-path close handlers, publishes done, and drains the
// completion list.
func (t *Task[R]) finish(result R, err error) {
	if !t.finishing.CompareAndSwap(0, 1) {
		return
	}
	t.result, t.err = result, err
	if errors.Is(err, ErrCanceled) {
		t.adapter.RunCloseHandlers()
	}
	t.done.Store(1)
	t.sealCompletions()
}

// sealCompletions swaps the list for the sealed marker and runs every
// callback taken. The swap gives each node to exactly one drainer, so
// concurrent seals (finish racing a late OnComplete) are safe.
func (t *Task[R]) sealCompletions() {
	for n := t.completions.Swap(completionsSealed); n != nil && n != completionsSealed; n = n.next {
		n.fn()
	}
}

// pump advances the protocol until it completes, parks, or hands the
// suspension to a write-completion callback. Exactly one thread runs
// pump for a given task at a time; re-entry happens only through a wake
// that took the corresponding park.
func (t *Task[R]) pump(susp *kont.Suspension[R]) {
	a := t.adapter
	for {
		if t.canceled() {
			var zero R
			susp.Discard()
			t.finish(zero, ErrCanceled)
			return
		}
		switch op := susp.Op().(type) {
		case Recv:
			m, nowEmpty, err := a.queue.poll()
			if err == nil {
				a.barrier.observe(nowEmpty)
				if susp = t.resume(susp, m); susp == nil {
					return
				}
				continue
			}
			if errors.Is(err, ErrClosed) {
				var zero R
				susp.Discard()
				t.finish(zero, ErrClosed)
				return
			}
			// Consumer is about to block: resume read delivery.
			a.barrier.observe(true)
			if !t.parkRecv(susp) {
				return
			}
		case TryRecv:
			m, nowEmpty, err := a.queue.poll()
			if err == nil {
				a.barrier.observe(nowEmpty)
				if susp = t.resume(susp, kont.Right[error](m)); susp == nil {
					return
				}
				continue
			}
			if errors.Is(err, ErrClosed) {
				if susp = t.resume(susp, kont.Left[error, *Message](ErrClosed)); susp == nil {
					return
				}
				continue
			}
			a.barrier.observe(true)
			if !t.parkRecv(susp) {
				return
			}
		case Send:
			if !a.conn.Writable() {
				if !t.parkWrite(susp, op.Msg) {
					return
				}
			}
			t.issueWrite(susp, op.Msg)
			return
		case SkipAll:
			a.queue.close()
			for {
				m, _, err := a.queue.poll()
				if err != nil {
					break
				}
				m.Release()
			}
			if susp = t.resume(susp, skipDone); susp == nil {
				return
			}
		case failer:
			var zero R
			susp.Discard()
			t.finish(zero, op.failCause())
			return
		default:
			panic("pump: unhandled effect in task pump")
		}
	}
}

// resume advances past one suspension. Returns the next suspension, or
// nil after latching completion.
func (t *Task[R]) resume(susp *kont.Suspension[R], v kont.Resumed) *kont.Suspension[R] {
	result, next := susp.Resume(v)
	if next == nil {
		t.finish(result, nil)
		return nil
	}
	return next
}

// parkRecv parks the suspension in the inbound queue's waiter slot.
// Reports true when the park was stolen back (progress became possible
// between the empty poll and the park) and the caller should retry;
// false when ownership transferred to a future wake.
func (t *Task[R]) parkRecv(susp *kont.Suspension[R]) bool {
	a := t.adapter
	wake := func() {
		a.disp.Dispatch(func() { t.pump(susp) })
	}
	a.queue.setWaiter(&wake)
	if a.queue.ready() || t.canceled() {
		return a.queue.takeWaiter() != nil
	}
	return false
}

// parkWrite parks into the pending-writer slot, displacing and waking
// any previous occupant. Same steal protocol as parkRecv; a stolen park
// proceeds straight to the write, matching the single
// park-then-write-regardless shape of Send.
func (t *Task[R]) parkWrite(susp *kont.Suspension[R], m *Message) bool {
	a := t.adapter
	wake := func() {
		a.disp.Dispatch(func() { t.issueWrite(susp, m) })
	}
	a.writer.park(&wake)
	if a.conn.Writable() || t.canceled() {
		return a.writer.take() != nil
	}
	return false
}

// issueWrite performs the non-blocking write and leaves the suspension
// with the completion callback. Entered directly from pump or from a
// writability wake, so the cancellation check repeats here.
func (t *Task[R]) issueWrite(susp *kont.Suspension[R], m *Message) {
	if t.canceled() {
		var zero R
		susp.Discard()
		t.finish(zero, ErrCanceled)
		return
	}
	a := t.adapter
	a.conn.Write(m, func(cause error) {
		a.disp.Dispatch(func() { t.completeSend(susp, cause) })
	})
}

// completeSend resumes the sender with the write outcome and keeps
// pumping. Benign end-of-stream resolves the send normally and cancels
// the task; the unwind then happens at the next suspension point.
func (t *Task[R]) completeSend(susp *kont.Suspension[R], cause error) {
	var v kont.Resumed
	switch {
	case cause == nil:
		v = sendOK
	case IsBenignClose(cause):
		t.Cancel()
		v = sendOK
	default:
		v = kont.Left[error, struct{}](cause)
	}
	if next := t.resume(susp, v); next != nil {
		t.pump(next)
	}
}
