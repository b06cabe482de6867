package rtc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dkeye/Meet/internal/config"
	"github.com/pion/webrtc/v4"
)

const minimalOffer = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n"

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestCheckSessionDescription(t *testing.T) {
	tests := []struct {
		name    string
		want    webrtc.SDPType
		data    json.RawMessage
		wantErr error
		anyErr  bool
	}{
		{
			name: "valid offer",
			want: webrtc.SDPTypeOffer,
			data: payload(t, map[string]string{"type": "offer", "sdp": minimalOffer}),
		},
		{
			name: "untyped answer",
			want: webrtc.SDPTypeAnswer,
			data: payload(t, map[string]string{"sdp": minimalOffer}),
		},
		{
			name:    "empty sdp",
			want:    webrtc.SDPTypeOffer,
			data:    payload(t, map[string]string{"type": "offer"}),
			wantErr: ErrEmptySDP,
		},
		{
			name:    "answer sent as offer",
			want:    webrtc.SDPTypeOffer,
			data:    payload(t, map[string]string{"type": "answer", "sdp": minimalOffer}),
			wantErr: ErrSDPTypeMismatch,
		},
		{
			name:   "garbage sdp",
			want:   webrtc.SDPTypeOffer,
			data:   payload(t, map[string]string{"type": "offer", "sdp": "hello"}),
			anyErr: true,
		},
		{
			name:   "not an object",
			want:   webrtc.SDPTypeOffer,
			data:   json.RawMessage(`"v=0"`),
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CheckSessionDescription(tt.want, tt.data)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.anyErr:
				if err == nil {
					t.Errorf("expected an error")
				}
			default:
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestCheckCandidate(t *testing.T) {
	cand, err := CheckCandidate(json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 192.168.1.2 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`))
	if err != nil {
		t.Fatal(err)
	}
	if cand.SDPMid == nil || *cand.SDPMid != "0" {
		t.Errorf("sdpMid not decoded: %+v", cand)
	}

	if _, err := CheckCandidate(json.RawMessage(`{"candidate":""}`)); err != nil {
		t.Errorf("end-of-candidates should be accepted: %v", err)
	}
	if _, err := CheckCandidate(json.RawMessage(`[1,2]`)); err == nil {
		t.Errorf("array payload should be rejected")
	}
}

func TestICEServers(t *testing.T) {
	got := ICEServers([]config.ICEServer{
		{URLs: []string{"turn:turn.example.org:3478", "http://nope"}, Username: "u", Credential: "p"},
		{URLs: []string{"ftp://bad"}},
	})
	if len(got) != 1 {
		t.Fatalf("ICEServers() = %+v, want one entry", got)
	}
	if len(got[0].URLs) != 1 || got[0].Credential != "p" {
		t.Errorf("ICEServers()[0] = %+v", got[0])
	}

	if def := ICEServers(nil); len(def) != 1 || def[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Errorf("empty config should fall back to default, got %+v", def)
	}
}
