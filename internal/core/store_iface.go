package core

import (
	"context"

	"github.com/dkeye/Meet/internal/domain"
)

// AuditSink receives audit events. Failures are reported, never retried.
type AuditSink interface {
	AppendAuditEvent(ctx context.Context, ev *domain.AuditEvent) error
}

// Store is the persistence collaborator. Every call may fail; only FindRoom
// failing is fatal to a connection attempt.
type Store interface {
	AuditSink

	CreateRoom(ctx context.Context, room *domain.Room) error
	// FindRoom returns domain.ErrRoomNotFound when no room has the code.
	FindRoom(ctx context.Context, code domain.RoomCode) (*domain.Room, error)

	CountActiveParticipants(ctx context.Context, room domain.RoomID) (int, error)
	ListActiveParticipants(ctx context.Context, room domain.RoomID) ([]domain.Participant, error)
	CreateParticipant(ctx context.Context, p *domain.Participant) error
	GetParticipant(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error)
	// FindParticipant returns the most recent active row for the client in the room,
	// or domain.ErrParticipantNotFound.
	FindParticipant(ctx context.Context, room domain.RoomID, client domain.ClientID) (*domain.Participant, error)
	UpdateParticipant(ctx context.Context, p *domain.Participant) error
}
