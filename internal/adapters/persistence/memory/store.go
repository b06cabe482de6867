// Package memory is a process-local Store used for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/dkeye/Meet/internal/domain"
)

type Store struct {
	mu           sync.RWMutex
	rooms        map[domain.RoomCode]domain.Room
	participants map[domain.ParticipantID]domain.Participant
	order        []domain.ParticipantID
	audit        []domain.AuditEvent
}

func New() *Store {
	return &Store{
		rooms:        make(map[domain.RoomCode]domain.Room),
		participants: make(map[domain.ParticipantID]domain.Participant),
	}
}

func (s *Store) CreateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Code] = *room
	return nil
}

func (s *Store) FindRoom(_ context.Context, code domain.RoomCode) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return &r, nil
}

func (s *Store) CountActiveParticipants(_ context.Context, room domain.RoomID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.participants {
		if p.RoomID == room && p.Active {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListActiveParticipants(_ context.Context, room domain.RoomID) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Participant
	for _, id := range s.order {
		p := s.participants[id]
		if p.RoomID == room && p.Active {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (s *Store) CreateParticipant(_ context.Context, p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.participants[p.ID] = clone(*p)
	return nil
}

func (s *Store) GetParticipant(_ context.Context, id domain.ParticipantID) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	p = clone(p)
	return &p, nil
}

// FindParticipant returns the most recently joined active row of client.
func (s *Store) FindParticipant(_ context.Context, room domain.RoomID, client domain.ClientID) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		p := s.participants[s.order[i]]
		if p.RoomID == room && p.ClientID == client && p.Active {
			p = clone(p)
			return &p, nil
		}
	}
	return nil, domain.ErrParticipantNotFound
}

func (s *Store) UpdateParticipant(_ context.Context, p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; !ok {
		return domain.ErrParticipantNotFound
	}
	s.participants[p.ID] = clone(*p)
	return nil
}

func (s *Store) AppendAuditEvent(_ context.Context, ev *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *ev)
	return nil
}

// AuditEvents returns every appended event in order.
func (s *Store) AuditEvents() []domain.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEvent, len(s.audit))
	copy(out, s.audit)
	return out
}

// clone detaches pointer fields so callers never share them with the store.
func clone(p domain.Participant) domain.Participant {
	if p.DisplayName != nil {
		n := *p.DisplayName
		p.DisplayName = &n
	}
	if p.LeftAt != nil {
		t := *p.LeftAt
		p.LeftAt = &t
	}
	return p
}
