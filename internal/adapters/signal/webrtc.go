package signal

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/adapters/rtc"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

type webrtcPayload struct {
	MeetingID domain.MeetingID `json:"meetingId"`
	TargetID  domain.ConnID    `json:"targetId,omitempty"`
	SDP       json.RawMessage  `json:"sdp,omitempty"`
	Candidate json.RawMessage  `json:"candidate,omitempty"`
}

// validDescription accepts either a full {"type","sdp"} object or a bare SDP
// string.
func validDescription(c *wsSignalConn, event string, want webrtc.SDPType, raw json.RawMessage) bool {
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		raw, _ = json.Marshal(webrtc.SessionDescription{Type: want, SDP: bare})
	}
	if _, err := rtc.ParseDescription(want, raw); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("bad description")
		return false
	}
	return true
}

// handleWebRTC relays meeting-scoped signaling. targetId is forwarded as
// metadata; every other participant receives the frame.
func (ctl *SignalWSController) handleWebRTC(ctx context.Context, c *wsSignalConn, event string, data json.RawMessage) {
	p, ok := decode[webrtcPayload](c, event, data)
	if !ok || p.MeetingID == "" {
		return
	}
	switch event {
	case core.EventWebRTCOffer:
		ok = validDescription(c, event, webrtc.SDPTypeOffer, p.SDP)
	case core.EventWebRTCAnswer:
		ok = validDescription(c, event, webrtc.SDPTypeAnswer, p.SDP)
	case core.EventWebRTCCandidate:
		if _, err := rtc.ParseCandidate(p.Candidate); err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("bad candidate")
			ok = false
		}
	}
	if !ok {
		return
	}
	if err := ctl.Orch.Signal(ctx, c.id, p.MeetingID, event, p.TargetID, data); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("signal")
	}
}
