package signal

import (
	"context"

	"github.com/dkeye/Meet/internal/core"
	"github.com/rs/zerolog/log"
)

// handleJoin takes the display-name announce. Without a name it is a no-op.
func (ctl *SignalWSController) handleJoin(ctx context.Context, sess *core.Session, data []byte) {
	var p joinMessage
	if !ctl.decode(sess, data, &p) {
		return
	}
	if p.DisplayName == nil {
		log.Debug().Str("module", "signal").Str("client", string(sess.Client)).Msg("join without display name")
		return
	}
	log.Info().Str("module", "signal").
		Str("room", string(sess.Room.Code)).
		Str("client", string(sess.Client)).
		Str("name", *p.DisplayName).
		Msg("rename")
	ctl.Orch.Rename(ctx, sess, *p.DisplayName)
}
