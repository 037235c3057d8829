// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import (
	"code.hybscloud.com/kont"
)

// Recv is the effect operation for receiving the next inbound message.
// Perform(Recv{}) transfers ownership of the message to the task, which
// must release it exactly once. Suspends while the inbound buffer is
// empty; fails the task with ErrClosed once the buffer is closed and
// drained.
type Recv struct {
	kont.Phantom[*Message]
}

// TryRecv is the receive variant that surfaces the closed condition in
// protocol instead of failing the task: it resumes with Right(message)
// normally and Left(ErrClosed) at end of stream. Suspends exactly like
// Recv while the buffer is empty but open.
type TryRecv struct {
	kont.Phantom[kont.Either[error, *Message]]
}

// Send is the effect operation for writing a message to the connection.
// Suspends first while the connection is not writable (single pending
// writer, see pendingWriter) and then until the write completion signal
// arrives. Resumes with Right on success and on benign end-of-stream
// (which additionally cancels the owning task); resumes with
// Left(cause) for any other write failure.
type Send struct {
	kont.Phantom[kont.Either[error, struct{}]]
	Msg *Message
}

// SkipAll is the effect operation fast-forwarding past remaining input:
// it closes the inbound buffer and releases whatever is already
// buffered. Used during teardown. Never suspends.
type SkipAll struct {
	kont.Phantom[struct{}]
}

// Fail is the effect operation aborting the task with err. The phantom
// type parameter is the result type expected at the point of failure,
// which the computation never produces.
type Fail[T any] struct {
	kont.Phantom[T]
	Err error
}

// failer erases Fail's type parameter for pump dispatch.
type failer interface {
	failCause() error
}

func (f Fail[T]) failCause() error { return f.Err }

// sendOK and skipDone are pre-boxed Resumed values, avoiding a heap
// escape per dispatch when boxing into Resumed (any).
var (
	sendOK   kont.Resumed = kont.Right[error](struct{}{})
	skipDone kont.Resumed = struct{}{}
)
