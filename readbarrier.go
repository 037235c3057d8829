// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import "code.hybscloud.com/atomix"

// readBurst is the number of consecutive still-non-empty observations
// tolerated since the last drain before automatic read delivery is
// suppressed.
const readBurst = 10

// readBarrier is the hysteresis counter deciding when to pause and
// resume the engine's automatic read delivery.
//
// observe is called from two sites with the same function: on every
// arrival with "the queue was empty immediately before this arrival",
// and on every successful dequeue with "the queue is empty immediately
// after this removal". The counter therefore also advances on the
// consumption path while the queue stays non-empty; read delivery is
// suppressed only after readBurst consecutive such observations, and any
// drain-to-empty resets the counter and resumes delivery.
type readBarrier struct {
	conn    Conn
	pending atomix.Uint32
	paused  atomix.Uint32
}

func (b *readBarrier) observe(empty bool) {
	if empty {
		b.pending.Store(0)
		if b.paused.CompareAndSwap(1, 0) {
			b.conn.SetAutoRead(true)
		}
		return
	}
	if b.pending.Add(1) >= readBurst {
		if b.paused.CompareAndSwap(0, 1) {
			b.conn.SetAutoRead(false)
		}
	}
}
