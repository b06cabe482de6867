package signal

import (
	"encoding/json"

	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// handlePeerSignal forwards an offer, answer or candidate to its target with
// the data untouched. Only a missing target drops the message.
func (ctl *SignalWSController) handlePeerSignal(sess *core.Session, kind orch.Kind, data []byte) {
	var p peerSignalMessage
	if !ctl.decode(sess, data, &p) {
		return
	}

	if err := inspectPeerSignal(kind, p.Data); err != nil {
		log.Debug().Err(err).Str("module", "signal").
			Str("room", string(sess.Room.Code)).
			Str("client", string(sess.Client)).
			Str("kind", string(kind)).
			Msg("peer signal not parsable, forwarding as is")
	}

	ctl.Orch.Forward(sess, kind, p.Target, p.Data)
}

func inspectPeerSignal(kind orch.Kind, data json.RawMessage) error {
	var err error
	switch kind {
	case orch.KindOffer:
		_, err = rtc.CheckSessionDescription(webrtc.SDPTypeOffer, data)
	case orch.KindAnswer:
		_, err = rtc.CheckSessionDescription(webrtc.SDPTypeAnswer, data)
	case orch.KindICECandidate:
		_, err = rtc.CheckCandidate(data)
	}
	return err
}
