// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import (
	"code.hybscloud.com/kont"
)

// Pre-allocated erased operations and frames to eliminate heap escapes
// when boxing empty structs into any/kont.Frame during Expr-world
// execution.
var (
	exprReturnFrame kont.Frame  = kont.ReturnFrame{}
	exprRecv        kont.Erased = Recv{}
	exprSkipAll     kont.Erased = SkipAll{}
)

// identityResume is the identity resume function for EffectFrame
// construction. Named function produces a static function value,
// consistent with kont convention.
func identityResume(v kont.Erased) kont.Erased { return v }

func recvBindUnwind[B any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	f := data.(func(*Message) kont.Expr[B])
	result := f(current.(*Message))
	return kont.Erased(result.Value), result.Frame
}

// ExprRecvBind receives a message and passes ownership to f.
// Fuses ExprPerform(Recv{}) + ExprBind.
func ExprRecvBind[B any](f func(*Message) kont.Expr[B]) kont.Expr[B] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = f
	bf.Unwind = recvBindUnwind[B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = exprRecv
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}

func sendThenUnwind[B any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	e := current.(kont.Either[error, struct{}])
	if cause, ok := e.GetLeft(); ok {
		ef := kont.AcquireEffectFrame()
		ef.Operation = Fail[B]{Err: cause}
		ef.Resume = identityResume
		ef.Next = exprReturnFrame
		result := kont.ExprSuspend[B](ef)
		return kont.Erased(result.Value), result.Frame
	}
	next := data.(kont.Expr[B])
	return kont.Erased(next.Value), next.Frame
}

// ExprSendThen sends a message and then continues with next. A write
// failure that is not benign end-of-stream aborts the task with its
// cause. Fuses ExprPerform(Send{Msg: m}) + ExprBind + Either branch.
func ExprSendThen[B any](m *Message, next kont.Expr[B]) kont.Expr[B] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = next
	bf.Unwind = sendThenUnwind[B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = Send{Msg: m}
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}

// ExprSkipAllDone fast-forwards past remaining input and returns a.
// Fuses ExprPerform(SkipAll{}) + ExprThen + ExprReturn.
func ExprSkipAllDone[A any](a A) kont.Expr[A] {
	tf := kont.AcquireThenFrame()
	tf.Second = kont.Expr[kont.Erased]{Value: kont.Erased(a), Frame: exprReturnFrame}
	tf.Next = exprReturnFrame
	ef := kont.AcquireEffectFrame()
	ef.Operation = exprSkipAll
	ef.Resume = identityResume
	ef.Next = tf
	return kont.ExprSuspend[A](ef)
}

// ExprLoop runs a recursive protocol (Expr-world). step returns
// Left(nextState) to continue or Right(result) to finish. Fuses
// ExprBind inline to avoid the type-erasing wrapper closure.
func ExprLoop[S, A any](initial S, step func(S) kont.Expr[kont.Either[S, A]]) kont.Expr[A] {
	m := step(initial)
	if _, ok := m.Frame.(kont.ReturnFrame); ok {
		if left, ok := m.Value.GetLeft(); ok {
			return ExprLoop(left, step)
		}
		right, _ := m.Value.GetRight()
		return kont.ExprReturn(right)
	}
	bf := kont.AcquireBindFrame()
	bf.F = func(a kont.Erased) kont.Expr[kont.Erased] {
		e := a.(kont.Either[S, A])
		if left, ok := e.GetLeft(); ok {
			result := ExprLoop(left, step)
			return kont.Expr[kont.Erased]{Value: kont.Erased(result.Value), Frame: result.Frame}
		}
		right, _ := e.GetRight()
		return kont.Expr[kont.Erased]{Value: kont.Erased(right), Frame: kont.ReturnFrame{}}
	}
	bf.Next = kont.ReturnFrame{}
	var zero A
	return kont.Expr[A]{
		Value: zero,
		Frame: kont.ChainFrames(m.Frame, bf),
	}
}
