// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pump_test

import (
	"errors"
	"net"
	"testing"

	"code.hybscloud.com/kont"
	"code.hybscloud.com/pump"
)

// collectBody builds a task body receiving exactly n payloads.
func collectBody(n int) func() kont.Eff[[]string] {
	return func() kont.Eff[[]string] {
		return pump.Loop(make([]string, 0, n), func(acc []string) kont.Eff[kont.Either[[]string, []string]] {
			if len(acc) == n {
				return kont.Pure(kont.Right[[]string, []string](acc))
			}
			return pump.RecvScoped(func(m *pump.Message) kont.Either[[]string, []string] {
				return kont.Left[[]string, []string](append(acc, string(m.Data)))
			})
		})
	}
}

func TestReceiveFIFO(t *testing.T) {
	skipRace(t)
	conn := newTestConn()
	a := pump.NewAdapter[[]string](conn, pump.Inline{})
	task := a.Start(collectBody(3))

	for _, s := range []string{"m1", "m2", "m3"} {
		a.Deliver(pump.NewMessage([]byte(s), nil))
	}

	task.Wait()
	if err := task.Err(); err != nil {
		t.Fatalf("task failed: %v", err)
	}
	got := task.Result()
	want := []string{"m1", "m2", "m3"}
	if len(got) != len(want) {
		t.Fatalf("received %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBackpressureDisablesAfterEleven(t *testing.T) {
	skipRace(t)
	conn := newTestConn()
	a := pump.NewAdapter[struct{}](conn, pump.Inline{})

	for range 10 {
		a.Deliver(pump.NewMessage(nil, nil))
	}
	if !conn.autoRead.Load() {
		t.Fatal("read delivery disabled after only 10 offers")
	}
	if n := conn.pauses.Load(); n != 0 {
		t.Fatalf("got %d pause toggles, want 0", n)
	}

	a.Deliver(pump.NewMessage(nil, nil))
	if conn.autoRead.Load() {
		t.Fatal("read delivery still enabled after 11 consecutive offers")
	}
	if n := conn.pauses.Load(); n != 1 {
		t.Fatalf("got %d pause toggles, want 1", n)
	}
}

func TestBackpressureDrainReenables(t *testing.T) {
	skipRace(t)
	conn := newTestConn()
	a := pump.NewAdapter[[]string](conn, pump.Inline{})

	for range 11 {
		a.Deliver(pump.NewMessage([]byte("x"), nil))
	}
	if conn.autoRead.Load() {
		t.Fatal("read delivery not paused before drain")
	}

	task := a.Start(collectBody(11))
	task.Wait()
	if !conn.autoRead.Load() {
		t.Fatal("read delivery not re-enabled after full drain")
	}

	// Counter reset: a fresh burst tolerates another 10 offers.
	for range 10 {
		a.Deliver(pump.NewMessage(nil, nil))
	}
	if !conn.autoRead.Load() {
		t.Fatal("counter not reset by drain: paused within 10 offers")
	}
	a.Deliver(pump.NewMessage(nil, nil))
	if conn.autoRead.Load() {
		t.Fatal("read delivery still enabled after second 11-offer burst")
	}
}

func TestReceiveFIFOAcrossSegments(t *testing.T) {
	skipRace(t)
	const n = 300 // spans several inbound ring segments
	conn := newTestConn()
	a := pump.NewAdapter[[]string](conn, pump.Inline{})

	want := make([]string, n)
	for i := range n {
		want[i] = string(rune('a' + i%26))
		a.Deliver(pump.NewMessage([]byte(want[i]), nil))
	}

	task := a.Start(collectBody(n))
	task.Wait()
	if err := task.Err(); err != nil {
		t.Fatalf("task failed: %v", err)
	}
	got := task.Result()
	if len(got) != n {
		t.Fatalf("received %d messages, want %d", len(got), n)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSendBenignClose(t *testing.T) {
	skipRace(t)
	conn := newTestConn()
	conn.failWrites(net.ErrClosed)
	a := pump.NewAdapter[string](conn, pump.Inline{})

	task := a.Start(func() kont.Eff[string] {
		return pump.SendThen(pump.NewMessage([]byte("out"), nil),
			pump.RecvScoped(func(m *pump.Message) string { return string(m.Data) }),
		)
	})

	task.Wait()
	if !errors.Is(task.Err(), pump.ErrCanceled) {
		t.Fatalf("task err got %v, want ErrCanceled", task.Err())
	}
	if a.IsActive() {
		t.Fatal("task still active after benign-close send")
	}
}

func TestSendPropagatedFailure(t *testing.T) {
	skipRace(t)
	boom := errors.New("boom")
	conn := newTestConn()
	conn.failWrites(boom)
	a := pump.NewAdapter[string](conn, pump.Inline{})

	var got error
	a.Start(func() kont.Eff[string] {
		return pump.SendBind(pump.NewMessage([]byte("out"), nil), func(err error) kont.Eff[string] {
			got = err
			return pump.RecvScoped(func(m *pump.Message) string { return string(m.Data) })
		})
	})

	if !errors.Is(got, boom) {
		t.Fatalf("send outcome got %v, want %v", got, boom)
	}
	if !a.IsActive() {
		t.Fatal("task no longer active after propagated write failure")
	}
	a.Shutdown()
}

func TestSendThenUncaughtFailure(t *testing.T) {
	skipRace(t)
	boom := errors.New("boom")
	conn := newTestConn()
	conn.failWrites(boom)
	a := pump.NewAdapter[string](conn, pump.Inline{})

	task := a.Start(func() kont.Eff[string] {
		return pump.SendThen(pump.NewMessage(nil, nil), kont.Pure("unreached"))
	})

	task.Wait()
	if !errors.Is(task.Err(), boom) {
		t.Fatalf("task err got %v, want %v", task.Err(), boom)
	}
	if a.IsActive() {
		t.Fatal("task still active after uncaught write failure")
	}
}

func TestClosedQueueUnblocksReceive(t *testing.T) {
	skipRace(t)
	conn := newTestConn()
	loop := pump.NewRunLoop(64)
	defer loop.Close()
	a := pump.NewAdapter[string](conn, loop)

	task := a.Start(func() kont.Eff[string] {
		return pump.RecvScoped(func(m *pump.Message) string { return string(m.Data) })
	})

	a.Close()
	waitFor(t, task.Done)
	if !errors.Is(task.Err(), pump.ErrClosed) {
		t.Fatalf("task err got %v, want ErrClosed", task.Err())
	}
}

func TestCloseKeepsBufferedRetrievable(t *testing.T) {
	skipRace(t)
	conn := newTestConn()
	a := pump.NewAdapter[[]string](conn, pump.Inline{})

	a.Deliver(pump.NewMessage([]byte("a"), nil))
	a.Deliver(pump.NewMessage([]byte("b"), nil))
	a.Close()

	// Offers after close are refused and released.
	m, released := tracked("late")
	a.Deliver(m)
	if released.Load() != 1 {
		t.Fatal("post-close delivery not released")
	}

	task := a.Start(func() kont.Eff[[]string] {
		return pump.TryRecvBind(func(e kont.Either[error, *pump.Message]) kont.Eff[[]string] {
			return drainRest(nil, e)
		})
	})
	task.Wait()
	got := task.Result()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("drained %v, want [a b]", got)
	}
	if task.Err() != nil {
		t.Fatalf("drain failed: %v", task.Err())
	}
}

// drainRest folds TryRecv outcomes into acc until end of stream.
func drainRest(acc []string, e kont.Either[error, *pump.Message]) kont.Eff[[]string] {
	m, ok := e.GetRight()
	if !ok {
		return kont.Pure(acc)
	}
	acc = append(acc, string(m.Data))
	m.Release()
	return pump.TryRecvBind(func(e kont.Either[error, *pump.Message]) kont.Eff[[]string] {
		return drainRest(acc, e)
	})
}

func TestSkipAllReleasesBuffered(t *testing.T) {
	skipRace(t)
	conn := newTestConn()
	a := pump.NewAdapter[string](conn, pump.Inline{})

	first, firstReleased := tracked("head")
	rest1, rest1Released := tracked("r1")
	rest2, rest2Released := tracked("r2")
	a.Deliver(first)
	a.Deliver(rest1)
	a.Deliver(rest2)

	task := a.Start(func() kont.Eff[string] {
		return pump.RecvBind(func(m *pump.Message) kont.Eff[string] {
			s := string(m.Data)
			m.Release()
			return pump.SkipAllDone(s)
		})
	})

	task.Wait()
	if task.Result() != "head" {
		t.Fatalf("result got %q, want %q", task.Result(), "head")
	}
	if firstReleased.Load() != 1 || rest1Released.Load() != 1 || rest2Released.Load() != 1 {
		t.Fatalf("releases got %d/%d/%d, want 1/1/1",
			firstReleased.Load(), rest1Released.Load(), rest2Released.Load())
	}
}

func TestRecvScopedReleasesOnPanic(t *testing.T) {
	skipRace(t)
	conn := newTestConn()
	a := pump.NewAdapter[struct{}](conn, pump.Inline{})
	a.Start(func() kont.Eff[struct{}] {
		return pump.RecvScoped(func(*pump.Message) struct{} {
			panic("handler failure")
		})
	})

	m, released := tracked("payload")
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("handler panic did not propagate")
			}
		}()
		a.Deliver(m)
	}()
	if released.Load() != 1 {
		t.Fatalf("message released %d times, want 1", released.Load())
	}
}

func TestWritabilityParkAndNotify(t *testing.T) {
	skipRace(t)
	conn := newTestConn()
	conn.writable.Store(false)
	a := pump.NewAdapter[string](conn, pump.Inline{})

	task := a.Start(func() kont.Eff[string] {
		return pump.SendThen(pump.NewMessage([]byte("out"), nil), kont.Pure("sent"))
	})
	if task.Done() {
		t.Fatal("send completed while connection unwritable")
	}
	if n := conn.written.Load(); n != 0 {
		t.Fatalf("wrote %d messages while unwritable, want 0", n)
	}

	conn.writable.Store(true)
	a.NotifyWritable()
	task.Wait()
	if task.Err() != nil || task.Result() != "sent" {
		t.Fatalf("send task finished (%q, %v), want (sent, nil)", task.Result(), task.Err())
	}
	if n := conn.written.Load(); n != 1 {
		t.Fatalf("wrote %d messages, want 1", n)
	}
}

func TestCancelWhileWriteParked(t *testing.T) {
	skipRace(t)
	conn := newTestConn()
	conn.writable.Store(false)
	a := pump.NewAdapter[string](conn, pump.Inline{})

	task := a.Start(func() kont.Eff[string] {
		return pump.SendThen(pump.NewMessage(nil, nil), kont.Pure("sent"))
	})

	task.Cancel()
	task.Wait()
	if !errors.Is(task.Err(), pump.ErrCanceled) {
		t.Fatalf("task err got %v, want ErrCanceled", task.Err())
	}
	if n := conn.written.Load(); n != 0 {
		t.Fatalf("wrote %d messages after cancellation, want 0", n)
	}
}
