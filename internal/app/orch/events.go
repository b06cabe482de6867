package orch

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

// Kind is the wire discriminator carried in the "type" field.
type Kind string

const (
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"

	KindChatMessage      Kind = "chat-message"
	KindJoin             Kind = "join"
	KindAudioToggle      Kind = "audio-toggle"
	KindVideoToggle      Kind = "video-toggle"
	KindScreenShareStart Kind = "screen-share-start"
	KindScreenShareStop  Kind = "screen-share-stop"
	KindPing             Kind = "ping"
	KindLeave            Kind = "leave"

	KindChatHistory         Kind = "chat-history"
	KindUserJoined          Kind = "user-joined"
	KindUserLeft            Kind = "user-left"
	KindParticipantsUpdate  Kind = "participants-update"
	KindParticipantNameSync Kind = "participant-name-update"
	KindPong                Kind = "pong"
)

// IsPeerSignal reports whether k is relayed point-to-point.
func (k Kind) IsPeerSignal() bool {
	return k == KindOffer || k == KindAnswer || k == KindICECandidate
}

// ToggleKind maps a media kind to its toggle message kind.
func ToggleKind(m domain.MediaKind) Kind {
	if m == domain.MediaVideo {
		return KindVideoToggle
	}
	return KindAudioToggle
}

type chatMessageEvent struct {
	Type Kind `json:"type"`
	domain.ChatEvent
}

type chatHistoryEvent struct {
	Type     Kind               `json:"type"`
	Messages []chatMessageEvent `json:"messages"`
}

type userJoinedEvent struct {
	Type        Kind            `json:"type"`
	ClientID    domain.ClientID `json:"clientId"`
	DisplayName *string         `json:"displayName"`
	Timestamp   time.Time       `json:"timestamp"`
}

type userLeftEvent struct {
	Type      Kind            `json:"type"`
	ClientID  domain.ClientID `json:"clientId"`
	Timestamp time.Time       `json:"timestamp"`
}

type participantData struct {
	ClientID      domain.ClientID `json:"clientId"`
	DisplayName   *string         `json:"displayName"`
	AudioEnabled  bool            `json:"audioEnabled"`
	VideoEnabled  bool            `json:"videoEnabled"`
	ScreenSharing bool            `json:"screenSharing"`
}

type participantsUpdateEvent struct {
	Type             Kind              `json:"type"`
	Participants     []domain.ClientID `json:"participants"`
	ParticipantsData []participantData `json:"participantsData"`
}

type nameUpdateEvent struct {
	Type        Kind            `json:"type"`
	ClientID    domain.ClientID `json:"clientId"`
	DisplayName string          `json:"displayName"`
}

type toggleEvent struct {
	Type     Kind            `json:"type"`
	ClientID domain.ClientID `json:"clientId"`
	Enabled  bool            `json:"enabled"`
}

type screenShareEvent struct {
	Type     Kind            `json:"type"`
	ClientID domain.ClientID `json:"clientId"`
}

type peerSignalEvent struct {
	Type Kind            `json:"type"`
	From domain.ClientID `json:"from"`
	Data json.RawMessage `json:"data"`
}

type pongEvent struct {
	Type Kind `json:"type"`
}

func chatMessages(history []domain.ChatEvent) []chatMessageEvent {
	out := make([]chatMessageEvent, len(history))
	for i, ev := range history {
		out[i] = chatMessageEvent{Type: KindChatMessage, ChatEvent: ev}
	}
	return out
}
