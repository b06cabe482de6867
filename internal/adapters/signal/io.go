package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping failed")
				c.Close()
				return
			}
		}
	}
}

// readPump is the only reader of the socket, so one client's messages are
// handled strictly in arrival order. Any exit, including a panic in a
// handler, ends in the disconnect transition.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sess *core.Session, c *WsSignalConn) {
	stop := context.AfterFunc(ctx, c.Close)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").
				Str("room", string(sess.Room.Code)).
				Str("client", string(sess.Client)).
				Interface("panic", r).
				Msg("message loop fault")
		}
		defer ctl.live.Done()
		stop()
		cancel()
		c.Close()

		dctx, dcancel := context.WithTimeout(context.Background(), ctl.opts.WriteWait)
		defer dcancel()
		ctl.Orch.Disconnect(dctx, sess)
		log.Info().Str("module", "signal").
			Str("room", string(sess.Room.Code)).
			Str("client", string(sess.Client)).
			Msg("readPump closed")
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	limiter := newConnLimiter(ctl.opts.Rate, ctl.opts.Burst)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("module", "signal").Str("client", string(sess.Client)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
		if !limiter.Allow() {
			ctl.drop(sess, "rate_limited", nil)
			continue
		}
		if !ctl.handleSignal(ctx, sess, c, data) {
			return
		}
	}
}

type envelope struct {
	Type orch.Kind `json:"type"`
}

// handleSignal dispatches one inbound message. It reports false when the
// connection should end.
func (ctl *SignalWSController) handleSignal(ctx context.Context, sess *core.Session, c *WsSignalConn, data []byte) bool {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		ctl.drop(sess, "bad_json", err)
		return true
	}
	log.Debug().Str("module", "signal").
		Str("room", string(sess.Room.Code)).
		Str("client", string(sess.Client)).
		Str("kind", string(env.Type)).
		Msg("message")

	switch env.Type {
	case orch.KindOffer, orch.KindAnswer, orch.KindICECandidate:
		ctl.handlePeerSignal(sess, env.Type, data)
	case orch.KindChatMessage:
		ctl.handleChat(ctx, sess, data)
	case orch.KindJoin:
		ctl.handleJoin(ctx, sess, data)
	case orch.KindAudioToggle:
		ctl.handleToggle(ctx, sess, domain.MediaAudio, data)
	case orch.KindVideoToggle:
		ctl.handleToggle(ctx, sess, domain.MediaVideo, data)
	case orch.KindScreenShareStart:
		ctl.Orch.ScreenShare(sess, true)
	case orch.KindScreenShareStop:
		ctl.Orch.ScreenShare(sess, false)
	case orch.KindPing:
		ctl.handlePing(sess)
	case orch.KindLeave:
		ctl.handleLeave(sess, c)
		return false
	default:
		log.Warn().Str("module", "signal").
			Str("client", string(sess.Client)).
			Str("type", string(env.Type)).
			Msg("unknown signal")
		ctl.Orch.Stats().MessageDropped("unknown_kind")
	}
	return true
}

// decode unmarshals and validates a payload. Failures are dropped with a warning.
func (ctl *SignalWSController) decode(sess *core.Session, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		ctl.drop(sess, "bad_payload", err)
		return false
	}
	if err := ctl.validate.Struct(v); err != nil {
		ctl.drop(sess, "invalid_payload", err)
		return false
	}
	return true
}

func (ctl *SignalWSController) drop(sess *core.Session, reason string, err error) {
	log.Warn().Err(err).Str("module", "signal").
		Str("room", string(sess.Room.Code)).
		Str("client", string(sess.Client)).
		Str("reason", reason).
		Msg("message dropped")
	ctl.Orch.Stats().MessageDropped(reason)
}
