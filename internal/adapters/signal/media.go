package signal

import (
	"context"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// handleToggle treats a missing enabled field as true.
func (ctl *SignalWSController) handleToggle(ctx context.Context, sess *core.Session, media domain.MediaKind, data []byte) {
	var p toggleMessage
	if !ctl.decode(sess, data, &p) {
		return
	}
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	ctl.Orch.ToggleMedia(ctx, sess, media, enabled)
}

func (ctl *SignalWSController) handleChat(ctx context.Context, sess *core.Session, data []byte) {
	var p chatMessage
	if !ctl.decode(sess, data, &p) {
		return
	}
	ctl.Orch.PostChat(ctx, sess, p.Message, p.DisplayName)
}
