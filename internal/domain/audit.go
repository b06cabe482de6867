package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditKind string

const (
	AuditJoin        AuditKind = "join"
	AuditLeave       AuditKind = "leave"
	AuditChatMessage AuditKind = "chat_message"
	AuditAudioToggle AuditKind = "audio_toggle"
	AuditVideoToggle AuditKind = "video_toggle"
)

// AuditEvent is write-only from the relay's side.
type AuditEvent struct {
	ID            string         `json:"id" bson:"_id"`
	RoomID        RoomID         `json:"roomId" bson:"room_id"`
	ParticipantID *ParticipantID `json:"participantId,omitempty" bson:"participant_id,omitempty"`
	Kind          AuditKind      `json:"kind" bson:"event_type"`
	Payload       map[string]any `json:"payload,omitempty" bson:"event_data,omitempty"`
	IPAddress     string         `json:"ip,omitempty" bson:"ip_address,omitempty"`
	Timestamp     time.Time      `json:"timestamp" bson:"timestamp"`
}

func ToggleAuditKind(kind MediaKind) AuditKind {
	if kind == MediaVideo {
		return AuditVideoToggle
	}
	return AuditAudioToggle
}

func NewAuditEvent(room RoomID, participant *ParticipantID, kind AuditKind, payload map[string]any) *AuditEvent {
	return &AuditEvent{
		ID:            uuid.NewString(),
		RoomID:        room,
		ParticipantID: participant,
		Kind:          kind,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}
}
