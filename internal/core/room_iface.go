package core

import "github.com/dkeye/Meet/internal/domain"

// Recipient is one registered handle as seen by a broadcast.
type Recipient struct {
	Client domain.ClientID
	Conn   SignalConnection
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []Recipient
}

type RoomInfo struct {
	Code        domain.RoomCode `json:"code"`
	MemberCount int             `json:"client_count"`
}
