// Package rtc holds the WebRTC-facing pieces of the signaling path. The server
// never terminates media: it only checks that relayed offers, answers and
// candidates are well formed and tells clients which ICE servers to use.
package rtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

var (
	ErrEmptySDP     = errors.New("rtc: empty sdp")
	ErrSDPType      = errors.New("rtc: unexpected sdp type")
	ErrBadCandidate = errors.New("rtc: bad ice candidate")
)

const defaultSTUN = "stun:stun.l.google.com:19302"

// ICEServer is one configured STUN/TURN entry.
type ICEServer struct {
	URLs       []string `mapstructure:"urls" json:"urls"`
	Username   string   `mapstructure:"username" json:"username,omitempty"`
	Credential string   `mapstructure:"credential" json:"credential,omitempty"`
}

// Configuration builds the client-facing peer connection config. With no
// servers configured it falls back to a public STUN server.
func Configuration(servers []ICEServer) webrtc.Configuration {
	if len(servers) == 0 {
		return webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{
				{
					URLs: []string{defaultSTUN},
				},
			},
		}
	}
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		urls := make([]string, 0, len(s.URLs))
		for _, u := range s.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			continue
		}
		srv := webrtc.ICEServer{URLs: urls, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return webrtc.Configuration{ICEServers: out}
}

// ParseDescription decodes an offer or answer and parses its SDP body.
// A missing type is taken to be want.
func ParseDescription(want webrtc.SDPType, raw json.RawMessage) (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(raw, &sd); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("rtc: decode description: %w", err)
	}
	if sd.Type == webrtc.SDPTypeUnknown {
		sd.Type = want
	}
	if sd.Type != want {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: got %s, want %s", ErrSDPType, sd.Type, want)
	}
	if strings.TrimSpace(sd.SDP) == "" {
		return webrtc.SessionDescription{}, ErrEmptySDP
	}
	if _, err := sd.Unmarshal(); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("rtc: parse sdp: %w", err)
	}
	return sd, nil
}

// ParseCandidate decodes a trickled ICE candidate. An empty candidate string
// is the end-of-candidates marker and is accepted.
func ParseCandidate(raw json.RawMessage) (webrtc.ICECandidateInit, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return webrtc.ICECandidateInit{}, ErrBadCandidate
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &ci); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: %v", ErrBadCandidate, err)
	}
	if ci.Candidate != "" && !strings.HasPrefix(strings.TrimPrefix(ci.Candidate, "a="), "candidate:") {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: %q", ErrBadCandidate, ci.Candidate)
	}
	return ci, nil
}
