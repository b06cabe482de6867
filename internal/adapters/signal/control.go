package signal

import (
	"github.com/dkeye/Meet/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(sess *core.Session) {
	ctl.Orch.Pong(sess)
}

// handleLeave closes the socket normally; the read loop then runs the
// disconnect transition.
func (ctl *SignalWSController) handleLeave(sess *core.Session, conn *WsSignalConn) {
	log.Info().Str("module", "signal").
		Str("room", string(sess.Room.Code)).
		Str("client", string(sess.Client)).
		Msg("leave")
	conn.closeWith(websocket.CloseNormalClosure, "", ctl.opts.WriteWait)
}
