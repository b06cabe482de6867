package orch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Forward relays an offer, answer or candidate to exactly one peer. The data
// is passed through untouched. A missing target is a no-op.
func (o *Orchestrator) Forward(s *core.Session, kind Kind, target domain.ClientID, data json.RawMessage) {
	frame, ok := encode(peerSignalEvent{Type: kind, From: s.Client, Data: data})
	if !ok {
		return
	}
	delivered, dropped := o.Registry.Forward(s.Room.Code, target, frame)
	if dropped != nil {
		o.onDropped(*dropped)
	}
	o.Stats().MessageRouted(string(kind))
	log.Debug().Str("module", "orch").
		Str("room", string(s.Room.Code)).
		Str("client", string(s.Client)).
		Str("target", string(target)).
		Str("kind", string(kind)).
		Bool("delivered", delivered).
		Msg("peer signal")
}

// PostChat appends to the room's buffer and echoes to the whole room, sender
// included. Buffer order and live order are the same.
func (o *Orchestrator) PostChat(ctx context.Context, s *core.Session, text string, displayName *string) {
	name := domain.AnonymousName
	switch {
	case displayName != nil && *displayName != "":
		name = *displayName
	case s.DisplayName() != nil:
		name = *s.DisplayName()
	}

	ev := domain.ChatEvent{
		From:        s.Client,
		DisplayName: name,
		Message:     text,
		Timestamp:   time.Now().UTC(),
	}
	frame, ok := encode(chatMessageEvent{Type: KindChatMessage, ChatEvent: ev})
	if !ok {
		return
	}
	o.Chat.Append(s.Room.Code, ev, func() {
		o.publish(s.Room.Code, frame, "")
	})
	o.Stats().MessageRouted(string(KindChatMessage))

	o.audit(ctx, domain.NewAuditEvent(s.Room.ID, &s.Participant, domain.AuditChatMessage, map[string]any{
		"message": text,
	}))
}

// Rename records the announced display name and tells everyone else. The
// broadcast goes out even when the store cannot be updated.
func (o *Orchestrator) Rename(ctx context.Context, s *core.Session, name string) {
	s.SetDisplayName(name)

	p, err := o.Store.FindParticipant(ctx, s.Room.ID, s.Client)
	switch {
	case errors.Is(err, domain.ErrParticipantNotFound):
		log.Warn().Str("module", "orch").
			Str("room", string(s.Room.Code)).
			Str("client", string(s.Client)).
			Msg("rename: no participant row")
	case err != nil:
		log.Error().Err(err).Str("module", "orch").
			Str("room", string(s.Room.Code)).
			Str("client", string(s.Client)).
			Msg("rename: load participant failed")
	default:
		p.DisplayName = &name
		if err := o.Store.UpdateParticipant(ctx, p); err != nil {
			log.Error().Err(err).Str("module", "orch").
				Str("room", string(s.Room.Code)).
				Str("client", string(s.Client)).
				Msg("rename: update participant failed")
		}
	}

	o.broadcast(s.Room.Code, nameUpdateEvent{
		Type:        KindParticipantNameSync,
		ClientID:    s.Client,
		DisplayName: name,
	}, s.Client)
	o.Stats().MessageRouted(string(KindJoin))
}

// ToggleMedia persists an audio or video flag and broadcasts it to the whole
// room, sender included. Concurrent toggles are last-write-wins.
func (o *Orchestrator) ToggleMedia(ctx context.Context, s *core.Session, media domain.MediaKind, enabled bool) {
	p, err := o.Store.FindParticipant(ctx, s.Room.ID, s.Client)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").
			Str("room", string(s.Room.Code)).
			Str("client", string(s.Client)).
			Str("media", string(media)).
			Msg("toggle: load participant failed")
	} else {
		p.SetMedia(media, enabled)
		if err := o.Store.UpdateParticipant(ctx, p); err != nil {
			log.Error().Err(err).Str("module", "orch").
				Str("room", string(s.Room.Code)).
				Str("client", string(s.Client)).
				Str("media", string(media)).
				Msg("toggle: update participant failed")
		}
		o.audit(ctx, domain.NewAuditEvent(s.Room.ID, &p.ID, domain.ToggleAuditKind(media), map[string]any{
			"enabled": enabled,
		}))
	}

	kind := ToggleKind(media)
	o.broadcast(s.Room.Code, toggleEvent{Type: kind, ClientID: s.Client, Enabled: enabled}, "")
	o.Stats().MessageRouted(string(kind))
}

// ScreenShare relays a start or stop to everyone else. Nothing is stored.
func (o *Orchestrator) ScreenShare(s *core.Session, started bool) {
	kind := KindScreenShareStop
	if started {
		kind = KindScreenShareStart
	}
	o.broadcast(s.Room.Code, screenShareEvent{Type: kind, ClientID: s.Client}, s.Client)
	o.Stats().MessageRouted(string(kind))
}

// Pong answers a keepalive ping on the sender's own connection.
func (o *Orchestrator) Pong(s *core.Session) {
	o.send(s, pongEvent{Type: KindPong})
	o.Stats().MessageRouted(string(KindPing))
}
