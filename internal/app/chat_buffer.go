package app

import (
	"sync"

	"github.com/dkeye/Meet/internal/domain"
)

type chatLog struct {
	mu     sync.Mutex
	events []domain.ChatEvent
}

// ChatBuffer keeps every room's chat in receipt order for the life of the
// process. It is never trimmed here and survives the room emptying out.
type ChatBuffer struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*chatLog
}

func NewChatBuffer() *ChatBuffer {
	return &ChatBuffer{rooms: make(map[domain.RoomCode]*chatLog)}
}

func (b *ChatBuffer) log(code domain.RoomCode) *chatLog {
	b.mu.RLock()
	l, ok := b.rooms[code]
	b.mu.RUnlock()
	if ok {
		return l
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok = b.rooms[code]; !ok {
		l = &chatLog{}
		b.rooms[code] = l
	}
	return l
}

// Append records ev and runs publish while still holding the room's chat
// lock, so live delivery order matches buffer order.
func (b *ChatBuffer) Append(code domain.RoomCode, ev domain.ChatEvent, publish func()) {
	l := b.log(code)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if publish != nil {
		publish()
	}
}

// Replay hands fn a copy of the room's history while holding the room's chat
// lock. Anything fn registers sees no live chat until fn returns.
func (b *ChatBuffer) Replay(code domain.RoomCode, fn func(history []domain.ChatEvent)) {
	l := b.log(code)
	l.mu.Lock()
	defer l.mu.Unlock()
	history := make([]domain.ChatEvent, len(l.events))
	copy(history, l.events)
	fn(history)
}

func (b *ChatBuffer) History(code domain.RoomCode) []domain.ChatEvent {
	var out []domain.ChatEvent
	b.Replay(code, func(h []domain.ChatEvent) { out = h })
	return out
}
