// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import "sync/atomic"

// pendingWriter is the single-slot handoff waking a sender when the
// connection becomes writable again. At most one waiter occupies the
// slot at any instant.
//
// Known limitation, kept deliberately: parking over a non-empty slot
// displaces the previous occupant and wakes it immediately, with no
// guarantee that it can subsequently write. With the bridge's one task
// per connection a second concurrent waiter cannot arise from
// well-formed use; a multi-sender design would need a FIFO wait queue
// here instead.
type pendingWriter struct {
	slot atomic.Pointer[func()]
}

// park installs wake as the pending waiter, displacing and immediately
// waking any previous occupant.
func (w *pendingWriter) park(wake *func()) {
	if prev := w.slot.Swap(wake); prev != nil {
		(*prev)()
	}
}

// take removes and returns the pending waiter, if any. Used by
// writability notification, cancellation, and the waiter stealing its
// own park; the swap makes the wake exactly-once.
func (w *pendingWriter) take() *func() {
	return w.slot.Swap(nil)
}
