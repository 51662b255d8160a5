package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

type meetingPayload struct {
	MeetingID domain.MeetingID `json:"meetingId"`
}

type joinMeetingPayload struct {
	MeetingID domain.MeetingID `json:"meetingId"`
	Password  string           `json:"password,omitempty"`
	Name      string           `json:"name,omitempty"`
}

type peerConnectedPayload struct {
	MeetingID domain.MeetingID `json:"meetingId"`
	PeerID    string           `json:"peerId"`
}

type mediaTogglePayload struct {
	MeetingID domain.MeetingID `json:"meetingId"`
	Muted     *bool            `json:"muted"`
}

// handleJoinMeeting validates against the row store, seats the connection,
// then records attendance. Nothing in memory changes if validation fails.
func (ctl *SignalWSController) handleJoinMeeting(ctx context.Context, c *wsSignalConn, data json.RawMessage) {
	p, ok := decode[joinMeetingPayload](c, core.EventJoinMeeting, data)
	if !ok || p.MeetingID == "" {
		return
	}

	opts := orch.JoinOptions{MaxParticipants: ctl.Limits.MaxParticipants}
	if p.Name != "" {
		name, err := domain.NormalizeName(p.Name)
		if err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("join-meeting: bad name")
			return
		}
		opts.Name = name
	}

	if ctl.Meetings != nil {
		m, err := ctl.Meetings.Meeting(ctx, p.MeetingID)
		if err != nil {
			ctl.replyError(ctx, c, core.EventJoinMeeting, err)
			return
		}
		if err := app.Admit(m, p.Password); err != nil {
			ctl.replyError(ctx, c, core.EventJoinMeeting, err)
			return
		}
		if m.MaxParticipants > 0 {
			opts.MaxParticipants = m.MaxParticipants
		}
		if m.HostID == c.principal.ID {
			opts.Role = domain.RoleHost
		}
	}

	self, _, err := ctl.Orch.JoinMeeting(ctx, c.id, p.MeetingID, opts)
	if err != nil {
		ctl.replyError(ctx, c, core.EventJoinMeeting, err)
		return
	}
	if ctl.Meetings != nil {
		if err := ctl.Meetings.RecordJoin(ctx, p.MeetingID, self); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("meeting", string(p.MeetingID)).Msg("record join")
		}
	}
}

func (ctl *SignalWSController) handlePeerConnected(ctx context.Context, c *wsSignalConn, data json.RawMessage) {
	p, ok := decode[peerConnectedPayload](c, core.EventPeerConnected, data)
	if !ok || p.MeetingID == "" || p.PeerID == "" {
		return
	}
	if _, err := ctl.Orch.SetPeerID(ctx, c.id, p.MeetingID, p.PeerID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("peer-connected")
	}
}

func (ctl *SignalWSController) handleGetParticipants(ctx context.Context, c *wsSignalConn, data json.RawMessage) {
	p, ok := decode[meetingPayload](c, core.EventGetParticipants, data)
	if !ok || p.MeetingID == "" {
		return
	}
	if err := ctl.Orch.SendRoster(ctx, c.id, p.MeetingID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("get-participants")
	}
}

func (ctl *SignalWSController) handleLeaveMeeting(ctx context.Context, c *wsSignalConn, data json.RawMessage) {
	p, ok := decode[meetingPayload](c, core.EventLeaveMeeting, data)
	if !ok || p.MeetingID == "" {
		return
	}
	left, err := ctl.Orch.LeaveMeeting(ctx, c.id, p.MeetingID)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("leave-meeting")
		return
	}
	if left && ctl.Meetings != nil {
		if err := ctl.Meetings.RecordLeave(ctx, p.MeetingID, c.id); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("meeting", string(p.MeetingID)).Msg("record leave")
		}
	}
}

// handleMeetingEvent relays in-meeting events. Hand and media toggles also
// update the sender's participant record, so late joiners see them in the
// roster.
func (ctl *SignalWSController) handleMeetingEvent(ctx context.Context, c *wsSignalConn, event string, data json.RawMessage) {
	var mutate func(*domain.Participant)
	switch event {
	case core.EventRaiseHand:
		mutate = func(p *domain.Participant) { p.HandRaised = true }
	case core.EventLowerHand:
		mutate = func(p *domain.Participant) { p.HandRaised = false }
	case core.EventToggleAudio, core.EventToggleVideo:
		t, ok := decode[mediaTogglePayload](c, event, data)
		if !ok {
			return
		}
		if t.Muted == nil {
			log.Debug().Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("toggle without muted")
			return
		}
		muted := *t.Muted
		if event == core.EventToggleAudio {
			mutate = func(p *domain.Participant) { p.AudioMuted = muted }
		} else {
			mutate = func(p *domain.Participant) { p.VideoMuted = muted }
		}
	}

	p, ok := decode[meetingPayload](c, event, data)
	if !ok || p.MeetingID == "" {
		return
	}
	if err := ctl.Orch.RelayMeeting(ctx, c.id, p.MeetingID, event, data, mutate); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("meeting event")
	}
}
