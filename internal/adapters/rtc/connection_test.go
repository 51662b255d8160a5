package rtc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
)

const minimalSDP = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func descJSON(t *testing.T, typ, sdp string) json.RawMessage {
	t.Helper()
	m := map[string]string{"sdp": sdp}
	if typ != "" {
		m["type"] = typ
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestParseDescription(t *testing.T) {
	sd, err := ParseDescription(webrtc.SDPTypeOffer, descJSON(t, "offer", minimalSDP))
	if err != nil {
		t.Fatalf("valid offer rejected: %v", err)
	}
	if sd.Type != webrtc.SDPTypeOffer || sd.SDP != minimalSDP {
		t.Fatalf("unexpected description %+v", sd)
	}

	sd, err = ParseDescription(webrtc.SDPTypeAnswer, descJSON(t, "", minimalSDP))
	if err != nil || sd.Type != webrtc.SDPTypeAnswer {
		t.Fatalf("missing type should default to answer, got %v %v", sd.Type, err)
	}
}

func TestParseDescription_Rejects(t *testing.T) {
	cases := []struct {
		name string
		raw  json.RawMessage
		want error
	}{
		{"wrong type", descJSON(t, "answer", minimalSDP), ErrSDPType},
		{"empty sdp", descJSON(t, "offer", "  "), ErrEmptySDP},
		{"garbage sdp", descJSON(t, "offer", "hello"), nil},
		{"not json", json.RawMessage(`{`), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDescription(webrtc.SDPTypeOffer, tc.raw)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseCandidate(t *testing.T) {
	ci, err := ParseCandidate(json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}`))
	if err != nil {
		t.Fatal(err)
	}
	if ci.SDPMid == nil || *ci.SDPMid != "0" || ci.SDPMLineIndex == nil || *ci.SDPMLineIndex != 0 {
		t.Fatalf("fields lost: %+v", ci)
	}

	if _, err := ParseCandidate(json.RawMessage(`{"candidate":""}`)); err != nil {
		t.Fatalf("end-of-candidates should pass: %v", err)
	}
	for _, raw := range []string{``, `null`, `{"candidate":"bogus"}`, `[1]`} {
		if _, err := ParseCandidate(json.RawMessage(raw)); !errors.Is(err, ErrBadCandidate) {
			t.Fatalf("%q: expected ErrBadCandidate, got %v", raw, err)
		}
	}
}

func TestConfiguration(t *testing.T) {
	def := Configuration(nil)
	if len(def.ICEServers) != 1 || def.ICEServers[0].URLs[0] != defaultSTUN {
		t.Fatalf("unexpected default %+v", def.ICEServers)
	}

	cfg := Configuration([]ICEServer{
		{URLs: []string{" turn:turn.example.com:3478 "}, Username: "u", Credential: "p"},
		{URLs: []string{""}},
	})
	if len(cfg.ICEServers) != 1 {
		t.Fatalf("blank entries should be skipped, got %+v", cfg.ICEServers)
	}
	s := cfg.ICEServers[0]
	if s.URLs[0] != "turn:turn.example.com:3478" || s.Username != "u" || s.Credential != "p" {
		t.Fatalf("unexpected server %+v", s)
	}
}
