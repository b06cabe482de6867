package gormstore

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

type meetingModel struct {
	ID              string     `gorm:"type:varchar(36);primaryKey"`
	Code            string     `gorm:"type:varchar(10);not null;uniqueIndex"`
	Title           string     `gorm:"type:varchar(255)"`
	IsActive        bool       `gorm:"not null"`
	MaxParticipants int        `gorm:"not null"`
	CreatedByIP     string     `gorm:"type:varchar(64)"`
	CreatedAt       time.Time  `gorm:"not null"`
	StartedAt       *time.Time `gorm:"null"`
}

func (meetingModel) TableName() string { return "meetings" }

type participantModel struct {
	ID            string     `gorm:"type:varchar(36);primaryKey"`
	MeetingID     string     `gorm:"type:varchar(36);not null;index:idx_participant_lookup,priority:1"`
	ClientID      string     `gorm:"type:varchar(100);not null;index:idx_participant_lookup,priority:2"`
	DisplayName   *string    `gorm:"type:varchar(100);null"`
	IPAddress     string     `gorm:"type:varchar(64)"`
	UserAgent     string     `gorm:"type:text"`
	AudioEnabled  bool       `gorm:"not null"`
	VideoEnabled  bool       `gorm:"not null"`
	ScreenSharing bool       `gorm:"not null"`
	IsHost        bool       `gorm:"not null"`
	IsActive      bool       `gorm:"not null;index"`
	JoinedAt      time.Time  `gorm:"not null"`
	LeftAt        *time.Time `gorm:"null"`
}

func (participantModel) TableName() string { return "participants" }

type meetingLogModel struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	MeetingID     string    `gorm:"type:varchar(36);not null;index"`
	ParticipantID *string   `gorm:"type:varchar(36);null;index"`
	EventType     string    `gorm:"type:varchar(32);not null;index"`
	EventData     string    `gorm:"type:text"`
	IPAddress     string    `gorm:"type:varchar(64)"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

func (meetingLogModel) TableName() string { return "meeting_logs" }

func meetingFromDomain(r *domain.Room) meetingModel {
	return meetingModel{
		ID:              string(r.ID),
		Code:            string(r.Code),
		Title:           r.Title,
		IsActive:        r.Active,
		MaxParticipants: r.MaxParticipants,
		CreatedByIP:     r.CreatedByIP,
		CreatedAt:       r.CreatedAt,
		StartedAt:       r.StartedAt,
	}
}

func (m meetingModel) toDomain() *domain.Room {
	return &domain.Room{
		ID:              domain.RoomID(m.ID),
		Code:            domain.RoomCode(m.Code),
		Title:           m.Title,
		Active:          m.IsActive,
		MaxParticipants: m.MaxParticipants,
		CreatedByIP:     m.CreatedByIP,
		CreatedAt:       m.CreatedAt,
		StartedAt:       m.StartedAt,
	}
}

func participantFromDomain(p *domain.Participant) participantModel {
	return participantModel{
		ID:            string(p.ID),
		MeetingID:     string(p.RoomID),
		ClientID:      string(p.ClientID),
		DisplayName:   p.DisplayName,
		IPAddress:     p.IPAddress,
		UserAgent:     p.UserAgent,
		AudioEnabled:  p.AudioEnabled,
		VideoEnabled:  p.VideoEnabled,
		ScreenSharing: p.ScreenSharing,
		IsHost:        p.IsHost,
		IsActive:      p.Active,
		JoinedAt:      p.JoinedAt,
		LeftAt:        p.LeftAt,
	}
}

func (m participantModel) toDomain() domain.Participant {
	return domain.Participant{
		ID:            domain.ParticipantID(m.ID),
		RoomID:        domain.RoomID(m.MeetingID),
		ClientID:      domain.ClientID(m.ClientID),
		DisplayName:   m.DisplayName,
		IPAddress:     m.IPAddress,
		UserAgent:     m.UserAgent,
		AudioEnabled:  m.AudioEnabled,
		VideoEnabled:  m.VideoEnabled,
		ScreenSharing: m.ScreenSharing,
		IsHost:        m.IsHost,
		Active:        m.IsActive,
		JoinedAt:      m.JoinedAt,
		LeftAt:        m.LeftAt,
	}
}

func meetingLogFromDomain(ev *domain.AuditEvent) (meetingLogModel, error) {
	m := meetingLogModel{
		ID:        ev.ID,
		MeetingID: string(ev.RoomID),
		EventType: string(ev.Kind),
		IPAddress: ev.IPAddress,
		CreatedAt: ev.Timestamp,
	}
	if ev.ParticipantID != nil {
		id := string(*ev.ParticipantID)
		m.ParticipantID = &id
	}
	if ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return m, err
		}
		m.EventData = string(b)
	}
	return m, nil
}

func (m meetingLogModel) toDomain() (domain.AuditEvent, error) {
	ev := domain.AuditEvent{
		ID:        m.ID,
		RoomID:    domain.RoomID(m.MeetingID),
		Kind:      domain.AuditKind(m.EventType),
		IPAddress: m.IPAddress,
		Timestamp: m.CreatedAt,
	}
	if m.ParticipantID != nil {
		id := domain.ParticipantID(*m.ParticipantID)
		ev.ParticipantID = &id
	}
	if m.EventData != "" {
		if err := json.Unmarshal([]byte(m.EventData), &ev.Payload); err != nil {
			return ev, err
		}
	}
	return ev, nil
}
