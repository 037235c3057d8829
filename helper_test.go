// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump_test

import (
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/pump"
)

// testConn is a scripted engine-side connection. SetAutoRead toggles and
// writes are recorded; writeFn defaults to immediate success.
type testConn struct {
	autoRead  atomic.Bool
	pauses    atomic.Int32
	resumes   atomic.Int32
	writable  atomic.Bool
	written   atomic.Int32
	writeFn   atomic.Pointer[func(m *pump.Message, complete func(error))]
}

func newTestConn() *testConn {
	c := &testConn{}
	c.autoRead.Store(true)
	c.writable.Store(true)
	return c
}

func (c *testConn) SetAutoRead(enabled bool) {
	c.autoRead.Store(enabled)
	if enabled {
		c.resumes.Add(1)
	} else {
		c.pauses.Add(1)
	}
}

func (c *testConn) Writable() bool { return c.writable.Load() }

func (c *testConn) Write(m *pump.Message, complete func(error)) {
	c.written.Add(1)
	if fn := c.writeFn.Load(); fn != nil {
		(*fn)(m, complete)
		return
	}
	complete(nil)
}

// failWrites scripts every write to complete with cause.
func (c *testConn) failWrites(cause error) {
	fn := func(_ *pump.Message, complete func(error)) { complete(cause) }
	c.writeFn.Store(&fn)
}

// tracked returns a message whose final release bumps the counter.
func tracked(data string) (*pump.Message, *atomic.Int32) {
	var released atomic.Int32
	m := pump.NewMessage([]byte(data), func(*pump.Message) { released.Add(1) })
	return m, &released
}

// waitFor polls cond until it holds or the bounded wait elapses.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached within bounded time")
		}
		time.Sleep(time.Millisecond)
	}
}
