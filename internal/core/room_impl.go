package core

import (
	"sync"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomTable is the per-room sub-table of live handles, locked independently
// of every other room. Once it drains to zero handles it is retired and
// refuses further inserts; the registry then swaps in a fresh table.
// It never closes adapter-owned resources.
type RoomTable struct {
	code domain.RoomCode

	mu       sync.RWMutex
	byClient map[domain.ClientID]SignalConnection
	order    []domain.ClientID
	retired  bool
}

// NewRoomTable returns an empty, live table for code.
func NewRoomTable(code domain.RoomCode) *RoomTable {
	return &RoomTable{
		code:     code,
		byClient: make(map[domain.ClientID]SignalConnection),
	}
}

func (r *RoomTable) Code() domain.RoomCode { return r.code }

// Put inserts or overwrites the handle for client. An overwrite keeps the
// client's original position. It reports false if the table is retired.
func (r *RoomTable) Put(client domain.ClientID, conn SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return false
	}
	if _, ok := r.byClient[client]; !ok {
		r.order = append(r.order, client)
	}
	r.byClient[client] = conn
	log.Debug().Str("module", "core.room").Str("room", string(r.code)).Str("client", string(client)).Msg("handle registered")
	return true
}

// Remove deletes client's handle. It reports whether the table drained and was retired.
func (r *RoomTable) Remove(client domain.ClientID) (retired bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(client)
	return r.retireIfEmptyLocked()
}

// RemoveIf deletes client's handle only if it is still conn, so a pruned
// stale handle can never evict a newer connection of the same client.
func (r *RoomTable) RemoveIf(client domain.ClientID, conn SignalConnection) (removed, retired bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byClient[client]; !ok || cur != conn {
		return false, false
	}
	r.removeLocked(client)
	return true, r.retireIfEmptyLocked()
}

func (r *RoomTable) removeLocked(client domain.ClientID) {
	if _, ok := r.byClient[client]; !ok {
		return
	}
	delete(r.byClient, client)
	for i, c := range r.order {
		if c == client {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.code)).Str("client", string(client)).Msg("handle removed")
}

func (r *RoomTable) retireIfEmptyLocked() bool {
	if len(r.byClient) == 0 && !r.retired {
		r.retired = true
		return true
	}
	return false
}

// Retired reports whether the table drained and stopped taking inserts.
func (r *RoomTable) Retired() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.retired
}

// Get returns client's current handle.
func (r *RoomTable) Get(client domain.ClientID) (SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byClient[client]
	return conn, ok
}

// Clients returns the registered client ids in insertion order.
func (r *RoomTable) Clients() []domain.ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ClientID, len(r.order))
	copy(out, r.order)
	return out
}

// Len is the number of registered handles.
func (r *RoomTable) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byClient)
}

// Broadcast attempts delivery to every handle except exclude. Each attempt is
// independent; failed recipients are reported, not removed.
func (r *RoomTable) Broadcast(exclude domain.ClientID, data Frame) PublishResult {
	r.mu.RLock()
	targets := make([]Recipient, 0, len(r.order))
	for _, c := range r.order {
		if c == exclude {
			continue
		}
		targets = append(targets, Recipient{Client: c, Conn: r.byClient[c]})
	}
	r.mu.RUnlock()

	res := PublishResult{}
	for _, t := range targets {
		if err := t.Conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, t)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.code)).Str("exclude", string(exclude)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
