package app

import (
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry is the process-wide connection registry: room code to a
// per-room table of client handles. Rooms never contend with each other
// beyond the short top-level lookup.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*core.RoomTable
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomCode]*core.RoomTable)}
}

func (r *Registry) table(code domain.RoomCode) (*core.RoomTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.rooms[code]
	return t, ok
}

func (r *Registry) getOrCreate(code domain.RoomCode) *core.RoomTable {
	r.mu.RLock()
	t, ok := r.rooms[code]
	r.mu.RUnlock()
	if ok && !t.Retired() {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.rooms[code]; ok && !t.Retired() {
		return t
	}
	t = core.NewRoomTable(code)
	r.rooms[code] = t
	log.Info().Str("module", "app.registry").Str("room", string(code)).Msg("room table created")
	return t
}

// drop removes a retired table, unless a fresh one already replaced it.
func (r *Registry) drop(code domain.RoomCode, t *core.RoomTable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rooms[code]; ok && cur == t {
		delete(r.rooms, code)
		log.Info().Str("module", "app.registry").Str("room", string(code)).Msg("room table removed")
	}
}

// Register inserts or overwrites the handle for (code, client). A replaced
// handle is dropped, not closed.
func (r *Registry) Register(code domain.RoomCode, client domain.ClientID, conn core.SignalConnection) {
	for {
		t := r.getOrCreate(code)
		if t.Put(client, conn) {
			return
		}
	}
}

func (r *Registry) Unregister(code domain.RoomCode, client domain.ClientID) {
	t, ok := r.table(code)
	if !ok {
		return
	}
	if t.Remove(client) {
		r.drop(code, t)
	}
}

// UnregisterIf removes (code, client) only while it still maps to conn.
func (r *Registry) UnregisterIf(code domain.RoomCode, client domain.ClientID, conn core.SignalConnection) bool {
	t, ok := r.table(code)
	if !ok {
		return false
	}
	removed, retired := t.RemoveIf(client, conn)
	if retired {
		r.drop(code, t)
	}
	return removed
}

// Clients lists the registered client ids of a room in insertion order.
func (r *Registry) Clients(code domain.RoomCode) []domain.ClientID {
	t, ok := r.table(code)
	if !ok {
		return nil
	}
	return t.Clients()
}

func (r *Registry) Count(code domain.RoomCode) int {
	t, ok := r.table(code)
	if !ok {
		return 0
	}
	return t.Len()
}

func (r *Registry) Has(code domain.RoomCode) bool {
	_, ok := r.table(code)
	return ok
}

// Broadcast delivers data to every handle in the room except exclude.
// Handles that fail are pruned and reported back in Dropped.
func (r *Registry) Broadcast(code domain.RoomCode, data core.Frame, exclude domain.ClientID) core.PublishResult {
	t, ok := r.table(code)
	if !ok {
		return core.PublishResult{}
	}
	res := t.Broadcast(exclude, data)
	for _, d := range res.Dropped {
		r.UnregisterIf(code, d.Client, d.Conn)
		log.Warn().Str("module", "app.registry").Str("room", string(code)).Str("client", string(d.Client)).Msg("pruned dead handle")
	}
	return res
}

// Forward delivers data to exactly one client. An absent room or target is a
// silent no-op. A failed send prunes the target and returns it as dropped.
func (r *Registry) Forward(code domain.RoomCode, target domain.ClientID, data core.Frame) (delivered bool, dropped *core.Recipient) {
	t, ok := r.table(code)
	if !ok {
		return false, nil
	}
	conn, ok := t.Get(target)
	if !ok {
		return false, nil
	}
	if err := conn.TrySend(data); err != nil {
		r.UnregisterIf(code, target, conn)
		log.Warn().Err(err).Str("module", "app.registry").Str("room", string(code)).Str("client", string(target)).Msg("pruned dead handle")
		return false, &core.Recipient{Client: target, Conn: conn}
	}
	return true, nil
}

// Rooms snapshots every live room and its handle count.
func (r *Registry) Rooms() []core.RoomInfo {
	r.mu.RLock()
	tables := make([]*core.RoomTable, 0, len(r.rooms))
	for _, t := range r.rooms {
		tables = append(tables, t)
	}
	r.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(tables))
	for _, t := range tables {
		out = append(out, core.RoomInfo{Code: t.Code(), MemberCount: t.Len()})
	}
	return out
}
