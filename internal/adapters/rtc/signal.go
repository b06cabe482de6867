package rtc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

var (
	ErrEmptySDP        = errors.New("empty sdp")
	ErrSDPTypeMismatch = errors.New("sdp type does not match message")
)

// CheckSessionDescription decodes an offer or answer payload and parses its
// SDP. The caller still forwards the original bytes.
func CheckSessionDescription(want webrtc.SDPType, data json.RawMessage) (*webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("decode session description: %w", err)
	}
	if desc.SDP == "" {
		return nil, ErrEmptySDP
	}
	if desc.Type != webrtc.SDPTypeUnknown && desc.Type != want {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrSDPTypeMismatch, desc.Type, want)
	}

	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return nil, fmt.Errorf("parse sdp: %w", err)
	}
	return &desc, nil
}

// CheckCandidate decodes a trickled candidate. An empty candidate string is
// the end-of-candidates marker and is accepted.
func CheckCandidate(data json.RawMessage) (*webrtc.ICECandidateInit, error) {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(data, &cand); err != nil {
		return nil, fmt.Errorf("decode ice candidate: %w", err)
	}
	return &cand, nil
}
