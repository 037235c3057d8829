// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import (
	"errors"
	"net"
)

// Sentinel conditions surfaced by the bridge. They are distinct from each
// other and from genuine write failures, which propagate with their
// original cause.
var (
	// ErrClosed reports a receive on a closed, fully drained inbound
	// stream. Buffered messages remain retrievable after close; only
	// once they are gone does a receive fail with ErrClosed.
	ErrClosed = errors.New("pump: inbound stream closed")

	// ErrCanceled reports that cancellation unwound a pending
	// suspension. It is the completion error of a cancelled task.
	ErrCanceled = errors.New("pump: task canceled")

	// ErrConnClosed marks a write failure whose cause is the connection
	// already being closed. Engines may wrap it; classification goes
	// through IsBenignClose.
	ErrConnClosed = errors.New("pump: connection closed")
)

// IsBenignClose reports whether a write failure is benign end-of-stream:
// the connection was already closed underneath the sender. Such a failure
// resolves the pending send normally and cancels the owning task instead
// of propagating. net.ErrClosed is recognized because it is the cause
// real engines hand over for writes on closed sockets.
func IsBenignClose(err error) bool {
	return errors.Is(err, ErrConnClosed) || errors.Is(err, net.ErrClosed)
}
