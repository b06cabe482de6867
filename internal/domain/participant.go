package domain

import (
	"errors"
	"time"
)

const (
	MaxClientIDLen    = 100
	MaxDisplayNameLen = 100
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrClientIDEmpty       = errors.New("client id empty")
	ErrClientIDTooLong     = errors.New("client id too long")
)

type (
	ClientID      string
	ParticipantID string
)

// Participant is one joined browser tab. Rows are deactivated on leave, never deleted.
type Participant struct {
	ID            ParticipantID
	RoomID        RoomID
	ClientID      ClientID
	DisplayName   *string
	IPAddress     string
	UserAgent     string
	AudioEnabled  bool
	VideoEnabled  bool
	ScreenSharing bool
	IsHost        bool
	Active        bool
	JoinedAt      time.Time
	LeftAt        *time.Time
}

// NewParticipant returns an active participant with media on, matching what browsers start with.
func NewParticipant(id ParticipantID, room RoomID, client ClientID, host bool) *Participant {
	return &Participant{
		ID:           id,
		RoomID:       room,
		ClientID:     client,
		AudioEnabled: true,
		VideoEnabled: true,
		IsHost:       host,
		Active:       true,
		JoinedAt:     time.Now().UTC(),
	}
}

func (p *Participant) Deactivate(at time.Time) {
	p.Active = false
	at = at.UTC()
	p.LeftAt = &at
}

func (p *Participant) SetMedia(kind MediaKind, enabled bool) {
	switch kind {
	case MediaAudio:
		p.AudioEnabled = enabled
	case MediaVideo:
		p.VideoEnabled = enabled
	}
}

func (p *Participant) Name() string {
	if p.DisplayName == nil {
		return ""
	}
	return *p.DisplayName
}

func ValidateClientID(id string) error {
	if len(id) == 0 {
		return ErrClientIDEmpty
	}
	if len(id) > MaxClientIDLen {
		return ErrClientIDTooLong
	}
	return nil
}

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)
