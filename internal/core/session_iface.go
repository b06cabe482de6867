package core

import (
	"sync"

	"github.com/dkeye/Meet/internal/domain"
)

// Session binds one participant row to its transport endpoint for the
// lifetime of a single connection.
type Session struct {
	Room        domain.Room
	Client      domain.ClientID
	Participant domain.ParticipantID
	IsHost      bool
	IPAddress   string
	UserAgent   string

	conn SignalConnection

	mu          sync.RWMutex
	displayName *string
}

// NewSession starts a session with no display name and no participant row.
func NewSession(room domain.Room, client domain.ClientID, conn SignalConnection) *Session {
	return &Session{Room: room, Client: client, conn: conn}
}

func (s *Session) Signal() SignalConnection { return s.conn }

func (s *Session) DisplayName() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.displayName == nil {
		return nil
	}
	name := *s.displayName
	return &name
}

func (s *Session) SetDisplayName(name string) {
	s.mu.Lock()
	s.displayName = &name
	s.mu.Unlock()
}
