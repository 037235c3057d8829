// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

// Scope is the consumer-facing view of a connection bridge. The
// suspending operations themselves are the package-level effect
// constructors (RecvBind, SendThen, SkipAllDone, ...); the scope
// carries the runtime queries and lifetime coupling that a task body's
// surroundings need.
type Scope[R any] struct {
	a *Adapter[R]
}

// IsActive reports whether the scope's task is still running.
func (s Scope[R]) IsActive() bool {
	return s.a.IsActive()
}

// Task returns the underlying task handle, or nil before Start. The
// handle implements Completion for CoupleMany.
func (s Scope[R]) Task() *Task[R] {
	return s.a.Task()
}

// Serial returns the serial number of the underlying adapter.
func (s Scope[R]) Serial() Serial {
	return s.a.Serial()
}

// Cancel requests cancellation of the scope's task. Implements
// Completion so scopes can be coupled directly. No-op before Start.
func (s Scope[R]) Cancel() {
	if t := s.a.Task(); t != nil {
		t.Cancel()
	}
}

// OnComplete registers fn on the scope's task. Implements Completion.
// Must not be called before Start.
func (s Scope[R]) OnComplete(fn func()) {
	s.a.Task().OnComplete(fn)
}

// Completion is the erased lifetime surface of a task: cancellation plus
// completion notification. *Task implements it for any result type, as
// does a started Scope.
type Completion interface {
	// Cancel requests cancellation; idempotent, no-op when finished.
	Cancel()
	// OnComplete registers fn to run on completion (success, failure,
	// or cancellation); immediate if already complete.
	OnComplete(fn func())
}

// CoupleMany links the lifetimes of the given tasks: the first one to
// complete — by success, failure, or cancellation — cancels every
// other member. Cancellation is idempotent, so cascades and repeated
// coupling are safe. No ordering is guaranteed across which member's
// completion fires the cascade.
func CoupleMany(members ...Completion) {
	for i, m := range members {
		rest := make([]Completion, 0, len(members)-1)
		rest = append(rest, members[:i]...)
		rest = append(rest, members[i+1:]...)
		m.OnComplete(func() {
			for _, o := range rest {
				o.Cancel()
			}
		})
	}
}
