package orch

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Metrics is the counter surface the orchestrator reports into.
type Metrics interface {
	SessionStarted()
	SessionEnded()
	JoinRefused(reason string)
	MessageRouted(kind string)
	MessageDropped(reason string)
	DeliveryFailed(n int)
}

type nopMetrics struct{}

func (nopMetrics) SessionStarted()       {}
func (nopMetrics) SessionEnded()         {}
func (nopMetrics) JoinRefused(string)    {}
func (nopMetrics) MessageRouted(string)  {}
func (nopMetrics) MessageDropped(string) {}
func (nopMetrics) DeliveryFailed(int)    {}

// Orchestrator is the session lifecycle manager and the action side of the
// signal router. Store is required; Audit falls back to Store when nil.
type Orchestrator struct {
	Registry *app.Registry
	Chat     *app.ChatBuffer
	Gate     *app.JoinGate
	Store    core.Store
	Audit    core.AuditSink
	Policy   app.Policy
	Metrics  Metrics
}

func New(store core.Store, audit core.AuditSink, metrics Metrics) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Chat:     app.NewChatBuffer(),
		Gate:     app.NewJoinGate(),
		Store:    store,
		Audit:    audit,
		Policy:   app.SimplePolicy{},
		Metrics:  metrics,
	}
}

// Stats never returns nil.
func (o *Orchestrator) Stats() Metrics {
	if o.Metrics == nil {
		return nopMetrics{}
	}
	return o.Metrics
}

func (o *Orchestrator) auditSink() core.AuditSink {
	if o.Audit != nil {
		return o.Audit
	}
	return o.Store
}

// audit writes ev and logs a failure; it never fails the caller.
func (o *Orchestrator) audit(ctx context.Context, ev *domain.AuditEvent) {
	if err := o.auditSink().AppendAuditEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("module", "orch").
			Str("room_id", string(ev.RoomID)).
			Str("kind", string(ev.Kind)).
			Msg("audit append failed")
	}
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode event")
		return nil, false
	}
	return core.Frame(b), true
}

// send delivers v to the session's own connection only.
func (o *Orchestrator) send(s *core.Session, v any) {
	frame, ok := encode(v)
	if !ok {
		return
	}
	if err := s.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "orch").
			Str("room", string(s.Room.Code)).
			Str("client", string(s.Client)).
			Msg("direct send failed")
	}
}

func (o *Orchestrator) broadcast(code domain.RoomCode, v any, exclude domain.ClientID) {
	frame, ok := encode(v)
	if !ok {
		return
	}
	o.publish(code, frame, exclude)
}

func (o *Orchestrator) publish(code domain.RoomCode, frame core.Frame, exclude domain.ClientID) {
	res := o.Registry.Broadcast(code, frame, exclude)
	o.onDropped(res.Dropped...)
}

func (o *Orchestrator) onDropped(dropped ...core.Recipient) {
	if len(dropped) == 0 {
		return
	}
	o.Stats().DeliveryFailed(len(dropped))
	if o.Policy == nil {
		return
	}
	for _, d := range dropped {
		switch o.Policy.OnDeliveryFailure(d) {
		case app.CloseConnection:
			d.Conn.Close()
		case app.NoAction:
		}
	}
}
