// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pump bridges a single cooperative task with an asynchronous,
// event-driven network connection, via algebraic effects on
// [code.hybscloud.com/kont].
//
// The I/O driver thread keeps the connection moving — delivering inbound
// messages, writability signals, and write completions — while the task
// exchanges messages through sequential-looking receive/send operations,
// suspending at the points where the connection cannot make progress.
// Exactly one task per connection: the bridge is strictly a
// single-producer/single-consumer handoff.
//
// # Architecture
//
//   - Inbound: Unbounded, closable, strict-FIFO buffer built from chained
//     bounded lock-free SPSC rings via [code.hybscloud.com/lfq].
//   - Backpressure: A hysteresis barrier suppresses the engine's automatic
//     read delivery after sustained still-non-empty observations and
//     re-enables it whenever the buffer drains.
//   - Suspension: Task protocols are stepped one effect at a time; parked
//     [code.hybscloud.com/kont.Suspension] handles are woken by driver
//     events through single-slot atomic handoffs.
//   - Non-blocking: Internal boundaries report
//     [code.hybscloud.com/iox.ErrWouldBlock]; the only blocking waits are
//     Backoff joins ([Task.Wait], [RunLoop.Close]).
//
// # API Topologies
//
//   - Lifecycle: [NewAdapter], [Adapter.Start], [Adapter.Shutdown],
//     [Task.Cancel], [Task.Wait], [CoupleMany].
//   - Driver side: [Adapter.Deliver], [Adapter.NotifyWritable],
//     [Adapter.Close], [Adapter.RunCloseHandlers].
//   - Operations: [Recv], [TryRecv], [Send], [SkipAll]. Cont-world sugar:
//     [RecvBind], [RecvScoped], [TryRecvBind], [SendThen], [SendBind],
//     [SkipAllDone], [Loop]. Expr-world mirrors: [ExprRecvBind],
//     [ExprSendThen], [ExprSkipAllDone], [ExprLoop]. Bridge via [Reify]
//     and [Reflect].
//   - Payloads: [Message] is a reference-counted handle released exactly
//     once; [RecvScoped] releases on every exit path. [Pool] recycles
//     message handles through a lock-free free list.
//
// # Error Conditions
//
//   - [ErrClosed]: receive on a closed, drained inbound stream.
//   - [ErrCanceled]: cancellation unwound a pending suspension.
//   - [ErrConnClosed] (or net.ErrClosed): benign end-of-stream write
//     failure — the send resolves normally and the owning task is
//     cancelled. Any other write failure propagates to the sender; there
//     are no retries.
//
// # Example
//
//	adapter := pump.NewAdapter[int](conn, pump.Inline{})
//	task := adapter.Start(func() kont.Eff[int] {
//		return pump.RecvScoped(func(m *pump.Message) int {
//			return len(m.Data)
//		})
//	})
//	// driver side:
//	adapter.Deliver(msg)
//	task.Wait()
package pump
