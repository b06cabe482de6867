package core

import (
	"sync"
	"testing"

	"github.com/dkeye/Meet/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	err    error
	closed bool
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func TestRoomTable_OrderAndOverwrite(t *testing.T) {
	rt := NewRoomTable("abc1234567")
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}

	rt.Put("A", a)
	rt.Put("B", b)
	rt.Put("C", c)
	rt.Put("A", &fakeConn{})

	got := rt.Clients()
	want := []domain.ClientID{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("Clients() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Clients() = %v, want %v", got, want)
		}
	}

	if conn, _ := rt.Get("A"); conn == a {
		t.Errorf("overwrite should replace the old handle")
	}
}

func TestRoomTable_RemoveRetires(t *testing.T) {
	rt := NewRoomTable("abc1234567")
	rt.Put("A", &fakeConn{})
	rt.Put("B", &fakeConn{})

	if rt.Remove("A") {
		t.Fatalf("table should not retire while B is registered")
	}
	if !rt.Remove("B") {
		t.Fatalf("table should retire when drained")
	}
	if rt.Put("C", &fakeConn{}) {
		t.Errorf("retired table must refuse inserts")
	}
	if rt.Remove("B") {
		t.Errorf("retire is reported once")
	}
}

func TestRoomTable_RemoveIfKeepsNewerHandle(t *testing.T) {
	rt := NewRoomTable("abc1234567")
	old, fresh := &fakeConn{}, &fakeConn{}
	rt.Put("A", old)
	rt.Put("A", fresh)

	removed, _ := rt.RemoveIf("A", old)
	if removed {
		t.Fatalf("stale handle must not evict the newer one")
	}
	removed, retired := rt.RemoveIf("A", fresh)
	if !removed || !retired {
		t.Errorf("RemoveIf(fresh) = (%v, %v), want (true, true)", removed, retired)
	}
}

func TestRoomTable_BroadcastExcludesAndReportsDrops(t *testing.T) {
	rt := NewRoomTable("abc1234567")
	a, b, c := &fakeConn{}, &fakeConn{err: ErrBackpressure}, &fakeConn{}
	rt.Put("A", a)
	rt.Put("B", b)
	rt.Put("C", c)

	res := rt.Broadcast("A", Frame(`{"type":"x"}`))
	if res.SendTo != 1 {
		t.Errorf("SendTo = %d, want 1", res.SendTo)
	}
	if len(res.Dropped) != 1 || res.Dropped[0].Client != "B" {
		t.Errorf("Dropped = %+v, want [B]", res.Dropped)
	}
	if a.count() != 0 {
		t.Errorf("excluded client received %d frames", a.count())
	}
	if c.count() != 1 {
		t.Errorf("C received %d frames, want 1", c.count())
	}
	if rt.Len() != 3 {
		t.Errorf("Broadcast must not mutate membership, Len() = %d", rt.Len())
	}
}

func TestSession_DisplayNameCopy(t *testing.T) {
	s := NewSession(domain.Room{Code: "abc1234567"}, "A", &fakeConn{})
	if s.DisplayName() != nil {
		t.Fatalf("display name should start unset")
	}
	s.SetDisplayName("alice")
	n := s.DisplayName()
	*n = "mallory"
	if got := *s.DisplayName(); got != "alice" {
		t.Errorf("DisplayName() = %q, caller mutation leaked", got)
	}
}
