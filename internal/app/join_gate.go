package app

import (
	"sync"

	"github.com/dkeye/Meet/internal/domain"
)

type gateSlot struct {
	mu   sync.Mutex
	refs int
}

// JoinGate serialises the join sequence of one room so host election
// (count active, then insert) cannot interleave with another joiner.
type JoinGate struct {
	mu    sync.Mutex
	slots map[domain.RoomCode]*gateSlot
}

func NewJoinGate() *JoinGate {
	return &JoinGate{slots: make(map[domain.RoomCode]*gateSlot)}
}

// Lock blocks until the room's gate is held and returns its release func.
func (g *JoinGate) Lock(code domain.RoomCode) (unlock func()) {
	g.mu.Lock()
	s, ok := g.slots[code]
	if !ok {
		s = &gateSlot{}
		g.slots[code] = s
	}
	s.refs++
	g.mu.Unlock()

	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		g.mu.Lock()
		s.refs--
		if s.refs == 0 {
			delete(g.slots, code)
		}
		g.mu.Unlock()
	}
}
