// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import (
	"code.hybscloud.com/kont"
)

// RecvBind receives a message and passes ownership to f.
// Fuses Perform(Recv{}) + Bind. f must arrange for the message to be
// released exactly once; prefer RecvScoped when the payload does not
// outlive the handler.
func RecvBind[B any](f func(*Message) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Recv{}), f)
}

// RecvScoped receives a message, invokes f with it, and releases the
// message on every exit path, including a panicking handler. The scoped
// acquisition keeps the exactly-once release discipline out of task
// bodies that only inspect the payload.
func RecvScoped[B any](f func(*Message) B) kont.Eff[B] {
	return kont.Bind(kont.Perform(Recv{}), func(m *Message) kont.Eff[B] {
		defer m.Release()
		return kont.Pure(f(m))
	})
}

// TryRecvBind receives with the closed condition surfaced in protocol:
// f gets Right(message) normally and Left(ErrClosed) at end of stream.
// Fuses Perform(TryRecv{}) + Bind.
func TryRecvBind[B any](f func(kont.Either[error, *Message]) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(TryRecv{}), f)
}

// SendThen sends a message and then continues with next. A write failure
// that is not benign end-of-stream aborts the task with its cause — the
// uncaught propagation path. Use SendBind to observe the failure
// instead.
func SendThen[B any](m *Message, next kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Send{Msg: m}), func(e kont.Either[error, struct{}]) kont.Eff[B] {
		if cause, ok := e.GetLeft(); ok {
			return kont.Perform(Fail[B]{Err: cause})
		}
		return next
	})
}

// SendBind sends a message and passes the write outcome to f: nil on
// success (and on benign end-of-stream, which cancels the task), the
// propagated cause otherwise. The task itself stays active on a
// propagated failure; recovery is the task body's decision.
func SendBind[B any](m *Message, f func(error) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Send{Msg: m}), func(e kont.Either[error, struct{}]) kont.Eff[B] {
		if cause, ok := e.GetLeft(); ok {
			return f(cause)
		}
		return f(nil)
	})
}

// SkipAllDone fast-forwards past remaining input and returns a.
// Fuses Perform(SkipAll{}) + Then + Pure.
func SkipAllDone[A any](a A) kont.Eff[A] {
	return kont.Then(kont.Perform(SkipAll{}), kont.Pure(a))
}

// Loop runs a recursive protocol (Cont-world). step returns
// Left(nextState) to continue or Right(result) to finish. Receive loops
// are the dominant task-body shape over a connection.
func Loop[S, A any](initial S, step func(S) kont.Eff[kont.Either[S, A]]) kont.Eff[A] {
	return kont.Bind(step(initial), func(e kont.Either[S, A]) kont.Eff[A] {
		if left, ok := e.GetLeft(); ok {
			return Loop(left, step)
		}
		right, _ := e.GetRight()
		return kont.Pure(right)
	})
}
