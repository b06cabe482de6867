package orch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrSetup = errors.New("session setup refused")

const (
	ReasonNotFound = "Meeting not found"
	ReasonEnded    = "Meeting has ended"
	ReasonFull     = "Meeting is full"
	ReasonClientID = "Invalid client id"
	ReasonInternal = "Internal server error"
)

// SetupError refuses a connection before the participant is registered.
// Internal distinguishes a server fault from a policy refusal.
type SetupError struct {
	Internal bool
	Reason   string
	Err      error
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *SetupError) Unwrap() []error { return []error{ErrSetup, e.Err} }

func refuse(reason string, err error) *SetupError {
	return &SetupError{Reason: reason, Err: err}
}

func fail(err error) *SetupError {
	return &SetupError{Internal: true, Reason: ReasonInternal, Err: err}
}

// JoinRequest carries what the transport knows about a connecting client.
type JoinRequest struct {
	Code      domain.RoomCode
	Client    domain.ClientID
	IPAddress string
	UserAgent string
}

// Connect runs CONNECTING -> ACTIVE. On success conn is registered, has been
// sent the chat history and participant list, and the room has been told.
func (o *Orchestrator) Connect(ctx context.Context, req JoinRequest, conn core.SignalConnection) (*core.Session, error) {
	sess, err := o.admit(ctx, req, conn)
	if err != nil {
		var se *SetupError
		if errors.As(err, &se) {
			o.Stats().JoinRefused(se.Reason)
		}
		log.Warn().Err(err).Str("module", "orch").
			Str("room", string(req.Code)).
			Str("client", string(req.Client)).
			Msg("join refused")
		return nil, err
	}

	o.Chat.Replay(req.Code, func(history []domain.ChatEvent) {
		o.Registry.Register(req.Code, req.Client, conn)
		o.send(sess, chatHistoryEvent{Type: KindChatHistory, Messages: chatMessages(history)})
	})
	o.Stats().SessionStarted()

	o.sendParticipants(ctx, sess)

	o.broadcast(req.Code, userJoinedEvent{
		Type:        KindUserJoined,
		ClientID:    req.Client,
		DisplayName: sess.DisplayName(),
		Timestamp:   time.Now().UTC(),
	}, req.Client)

	log.Info().Str("module", "orch").
		Str("room", string(req.Code)).
		Str("client", string(req.Client)).
		Bool("host", sess.IsHost).
		Msg("participant joined")
	return sess, nil
}

// admit validates the room, elects the host and persists the participant.
// The room's join gate is held from the count to the insert.
func (o *Orchestrator) admit(ctx context.Context, req JoinRequest, conn core.SignalConnection) (*core.Session, error) {
	if err := domain.ValidateClientID(string(req.Client)); err != nil {
		return nil, refuse(ReasonClientID, err)
	}

	room, err := o.Store.FindRoom(ctx, req.Code)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil, refuse(ReasonNotFound, err)
	}
	if err != nil {
		return nil, fail(fmt.Errorf("find room: %w", err))
	}
	if !room.Active {
		return nil, refuse(ReasonEnded, domain.ErrRoomInactive)
	}

	unlock := o.Gate.Lock(req.Code)
	defer unlock()

	active, err := o.Store.CountActiveParticipants(ctx, room.ID)
	if err != nil {
		active = o.Registry.Count(req.Code)
		log.Error().Err(err).Str("module", "orch").
			Str("room", string(req.Code)).
			Int("fallback", active).
			Msg("count active participants failed, using live handles")
	}
	switch err := room.Admits(active); {
	case errors.Is(err, domain.ErrRoomFull):
		return nil, refuse(ReasonFull, err)
	case err != nil:
		return nil, refuse(ReasonEnded, err)
	}

	p := domain.NewParticipant(domain.ParticipantID(uuid.NewString()), room.ID, req.Client, active == 0)
	p.IPAddress = req.IPAddress
	p.UserAgent = req.UserAgent
	if err := o.Store.CreateParticipant(ctx, p); err != nil {
		return nil, fail(fmt.Errorf("create participant: %w", err))
	}

	ev := domain.NewAuditEvent(room.ID, &p.ID, domain.AuditJoin, map[string]any{
		"client_id": string(req.Client),
		"ip":        req.IPAddress,
	})
	ev.IPAddress = req.IPAddress
	o.audit(ctx, ev)

	sess := core.NewSession(*room, req.Client, conn)
	sess.Participant = p.ID
	sess.IsHost = p.IsHost
	sess.IPAddress = req.IPAddress
	sess.UserAgent = req.UserAgent
	return sess, nil
}

// sendParticipants tells the joiner who is live, with each member's flags
// taken from the store when it answers.
func (o *Orchestrator) sendParticipants(ctx context.Context, s *core.Session) {
	clients := o.Registry.Clients(s.Room.Code)
	data := make([]participantData, 0, len(clients))

	rows, err := o.Store.ListActiveParticipants(ctx, s.Room.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").
			Str("room", string(s.Room.Code)).
			Msg("list participants failed, sending ids only")
		for _, c := range clients {
			data = append(data, participantData{ClientID: c, AudioEnabled: true, VideoEnabled: true})
		}
	} else {
		latest := make(map[domain.ClientID]domain.Participant, len(rows))
		for _, p := range rows {
			if cur, ok := latest[p.ClientID]; !ok || p.JoinedAt.After(cur.JoinedAt) {
				latest[p.ClientID] = p
			}
		}
		for _, c := range clients {
			p, ok := latest[c]
			if !ok {
				continue
			}
			data = append(data, participantData{
				ClientID:      c,
				DisplayName:   p.DisplayName,
				AudioEnabled:  p.AudioEnabled,
				VideoEnabled:  p.VideoEnabled,
				ScreenSharing: p.ScreenSharing,
			})
		}
	}

	o.send(s, participantsUpdateEvent{
		Type:             KindParticipantsUpdate,
		Participants:     clients,
		ParticipantsData: data,
	})
}

// Disconnect runs ACTIVE -> DISCONNECTED. Persistence failures are logged;
// cleanup always completes. The host flag is never handed off.
func (o *Orchestrator) Disconnect(ctx context.Context, s *core.Session) {
	o.deactivate(ctx, s)
	o.Stats().SessionEnded()

	code := s.Room.Code
	if !o.Registry.UnregisterIf(code, s.Client, s.Signal()) {
		if slices.Contains(o.Registry.Clients(code), s.Client) {
			log.Info().Str("module", "orch").
				Str("room", string(code)).
				Str("client", string(s.Client)).
				Msg("stale connection closed, client reconnected")
			return
		}
	}

	if o.Registry.Count(code) == 0 {
		log.Info().Str("module", "orch").
			Str("room", string(code)).
			Str("client", string(s.Client)).
			Msg("last participant left")
		return
	}
	o.broadcast(code, userLeftEvent{
		Type:      KindUserLeft,
		ClientID:  s.Client,
		Timestamp: time.Now().UTC(),
	}, "")
	log.Info().Str("module", "orch").
		Str("room", string(code)).
		Str("client", string(s.Client)).
		Msg("participant left")
}

func (o *Orchestrator) deactivate(ctx context.Context, s *core.Session) {
	p, err := o.Store.GetParticipant(ctx, s.Participant)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").
			Str("room", string(s.Room.Code)).
			Str("client", string(s.Client)).
			Msg("load participant on disconnect failed")
		return
	}
	p.Deactivate(time.Now())
	if err := o.Store.UpdateParticipant(ctx, p); err != nil {
		log.Error().Err(err).Str("module", "orch").
			Str("room", string(s.Room.Code)).
			Str("client", string(s.Client)).
			Msg("mark participant inactive failed")
	}

	ev := domain.NewAuditEvent(s.Room.ID, &p.ID, domain.AuditLeave, map[string]any{
		"client_id": string(s.Client),
	})
	ev.IPAddress = s.IPAddress
	o.audit(ctx, ev)
}
