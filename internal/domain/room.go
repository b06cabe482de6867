package domain

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"
)

const (
	RoomCodeLength         = 10
	DefaultMaxParticipants = 10
	MinMaxParticipants     = 2
	MaxMaxParticipants     = 50

	roomCodeChars = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomInactive = errors.New("room is not active")
)

type (
	RoomCode string
	RoomID   string
)

// Room is the meeting record owned by the CRUD side. The relay only reads it.
type Room struct {
	ID              RoomID
	Code            RoomCode
	Title           string
	Active          bool
	MaxParticipants int
	CreatedByIP     string
	CreatedAt       time.Time
	StartedAt       *time.Time
}

// NewRoom builds a fresh active room with a random code.
func NewRoom(id RoomID, title string, maxParticipants int) (*Room, error) {
	code, err := NewRoomCode()
	if err != nil {
		return nil, err
	}
	if maxParticipants == 0 {
		maxParticipants = DefaultMaxParticipants
	}
	now := time.Now().UTC()
	return &Room{
		ID:              id,
		Code:            code,
		Title:           strings.TrimSpace(title),
		Active:          true,
		MaxParticipants: maxParticipants,
		CreatedAt:       now,
		StartedAt:       &now,
	}, nil
}

// Admits reports whether one more participant fits next to active ones.
func (r *Room) Admits(active int) error {
	if !r.Active {
		return ErrRoomInactive
	}
	if r.MaxParticipants > 0 && active >= r.MaxParticipants {
		return ErrRoomFull
	}
	return nil
}

func NewRoomCode() (RoomCode, error) {
	var sb strings.Builder
	sb.Grow(RoomCodeLength)

	n := big.NewInt(int64(len(roomCodeChars)))
	for i := 0; i < RoomCodeLength; i++ {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		sb.WriteByte(roomCodeChars[idx.Int64()])
	}
	return RoomCode(sb.String()), nil
}
