// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfq"
)

// Message is a reference-counted payload handle. The engine hands
// ownership to the bridge on arrival; whoever ends up holding the message
// (the task body, or RecvScoped on its behalf) must release it exactly
// once. The final Release invokes the free hook, returning pooled
// messages to their pool.
type Message struct {
	// Data is the opaque payload. The bridge never inspects it.
	Data []byte

	refs atomix.Uint32
	free func(*Message)
}

// NewMessage creates a message holding data with a reference count of
// one. free may be nil; when non-nil it runs on the final Release.
func NewMessage(data []byte, free func(*Message)) *Message {
	m := &Message{Data: data, free: free}
	m.refs.Add(1)
	return m
}

// Retain adds a reference. Every Retain requires a matching Release.
func (m *Message) Retain() {
	m.refs.Add(1)
}

// Release drops a reference. The final release runs the free hook.
// Releasing more times than retained corrupts the count; the handle must
// not be touched after its final Release.
func (m *Message) Release() {
	if m.refs.Add(^uint32(0)) != 0 {
		return
	}
	if m.free != nil {
		m.free(m)
	}
}

// Pool recycles message handles through a lock-free free list. Get on an
// exhausted pool reports lfq's would-block condition rather than
// allocating, making payload memory a fixed budget per connection.
type Pool struct {
	free lfq.Queue[*Message]
}

// NewPool creates a pool of n message handles. Capacity rounds up to the
// next power of two, following lfq.
func NewPool(n int) *Pool {
	p := &Pool{free: lfq.Build[*Message](lfq.New(n))}
	for range n {
		m := &Message{free: p.put}
		p.free.Enqueue(&m)
	}
	return p
}

// Get takes a handle from the pool and binds data to it with a reference
// count of one. Returns iox.ErrWouldBlock when the pool is exhausted.
func (p *Pool) Get(data []byte) (*Message, error) {
	m, err := p.free.Dequeue()
	if err != nil {
		return nil, err
	}
	m.Data = data
	m.refs.Add(1)
	return m, nil
}

// put returns a handle to the free list on final Release. The ring was
// sized for every handle the pool owns, so the enqueue cannot block.
func (p *Pool) put(m *Message) {
	m.Data = nil
	p.free.Enqueue(&m)
}
