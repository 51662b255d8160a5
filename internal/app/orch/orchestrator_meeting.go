package orch

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

// JoinOptions carries what the caller learned from the row store.
type JoinOptions struct {
	Name            string
	Role            domain.Role
	MaxParticipants int
}

type rosterData struct {
	MeetingID    domain.MeetingID     `json:"meetingId"`
	Self         *domain.Participant  `json:"self,omitempty"`
	Participants []domain.Participant `json:"participants"`
}

type participantData struct {
	MeetingID   domain.MeetingID   `json:"meetingId"`
	Participant domain.Participant `json:"participant"`
}

type participantLeftData struct {
	MeetingID     domain.MeetingID `json:"meetingId"`
	ParticipantID domain.ConnID    `json:"participantId"`
	Name          string           `json:"name"`
	PeerID        string           `json:"peerId,omitempty"`
}

type peerConnectedData struct {
	MeetingID     domain.MeetingID `json:"meetingId"`
	ParticipantID domain.ConnID    `json:"participantId"`
	PeerID        string           `json:"peerId"`
	Name          string           `json:"name"`
}

// JoinMeeting seats the connection in a meeting. The joiner gets the roster
// of everyone else; the others get participant-joined. Those are two separate
// deliveries, joiner first.
func (o *Orchestrator) JoinMeeting(ctx context.Context, id domain.ConnID, meetingID domain.MeetingID, opts JoinOptions) (self domain.Participant, others []domain.Participant, err error) {
	doErr := o.Do(ctx, func() {
		m, ok := o.Registry.Member(id)
		if !ok {
			err = domain.ErrNotFound
			return
		}
		_, rejoin := o.Meetings.Participant(meetingID, id)
		if !rejoin && opts.MaxParticipants > 0 && o.Meetings.Count(meetingID) >= opts.MaxParticipants {
			err = domain.ErrMeetingFull
			return
		}

		self = domain.NewParticipant(id, m.Principal, opts.Role, o.now())
		if opts.Name != "" {
			self.Name = opts.Name
		}
		others = o.Meetings.JoinMeeting(meetingID, self)
		room := domain.MeetingRoom(meetingID)
		o.Rooms.Join(id, room)
		log.Info().Str("module", "orch").Str("conn", string(id)).Str("meeting", string(meetingID)).Int("others", len(others)).Msg("joined meeting")

		o.send(m.Conn, core.Envelope{
			Type: core.EventMeetingParticipants,
			Data: rosterData{MeetingID: meetingID, Self: &self, Participants: others},
		})
		o.broadcast(room, id, core.Envelope{
			Type: core.EventParticipantJoined,
			Data: participantData{MeetingID: meetingID, Participant: self},
		})
	})
	if doErr != nil {
		return domain.Participant{}, nil, doErr
	}
	return self, others, err
}

// SetPeerID records the participant's media peer id and relays it.
// A departed participant or vanished meeting is a benign miss.
func (o *Orchestrator) SetPeerID(ctx context.Context, id domain.ConnID, meetingID domain.MeetingID, peerID string) (bool, error) {
	var ok bool
	err := o.Do(ctx, func() {
		var p domain.Participant
		p, ok = o.Meetings.SetPeerID(meetingID, id, peerID)
		if !ok {
			log.Debug().Str("module", "orch").Str("conn", string(id)).Str("meeting", string(meetingID)).Msg("peer-connected: no such participant")
			return
		}
		o.relay(id, domain.MeetingRoom(meetingID), meetingID, core.EventPeerConnected, "",
			peerConnectedData{MeetingID: meetingID, ParticipantID: id, PeerID: peerID, Name: p.Name})
	})
	return ok, err
}

// Roster returns the meeting's participants except excluding; unknown
// meetings give an empty list.
func (o *Orchestrator) Roster(ctx context.Context, meetingID domain.MeetingID, excluding domain.ConnID) ([]domain.Participant, error) {
	var out []domain.Participant
	err := o.Do(ctx, func() { out = o.Meetings.Roster(meetingID, excluding) })
	return out, err
}

// SendRoster delivers the roster, minus the requester, to the requester.
func (o *Orchestrator) SendRoster(ctx context.Context, id domain.ConnID, meetingID domain.MeetingID) error {
	return o.Do(ctx, func() {
		m, ok := o.Registry.Member(id)
		if !ok {
			return
		}
		o.send(m.Conn, core.Envelope{
			Type: core.EventMeetingParticipants,
			Data: rosterData{MeetingID: meetingID, Participants: o.Meetings.Roster(meetingID, id)},
		})
	})
}

// LeaveMeeting removes the participant record and tells the room.
func (o *Orchestrator) LeaveMeeting(ctx context.Context, id domain.ConnID, meetingID domain.MeetingID) (bool, error) {
	var ok bool
	err := o.Do(ctx, func() {
		var p domain.Participant
		p, ok = o.Meetings.LeaveMeeting(meetingID, id)
		room := domain.MeetingRoom(meetingID)
		o.Rooms.Leave(id, room)
		if !ok {
			return
		}
		log.Info().Str("module", "orch").Str("conn", string(id)).Str("meeting", string(meetingID)).Msg("left meeting")
		o.broadcast(room, id, core.Envelope{
			Type: core.EventParticipantLeft,
			Data: participantLeftData{MeetingID: meetingID, ParticipantID: id, Name: p.Name, PeerID: p.PeerID},
		})
	})
	return ok, err
}

// RelayMeeting relays a meeting-scoped event. When mutate is set it is
// applied to the sender's participant record first. A sender with no record
// is a benign miss and nothing is relayed.
func (o *Orchestrator) RelayMeeting(ctx context.Context, from domain.ConnID, meetingID domain.MeetingID, event string, data json.RawMessage, mutate func(*domain.Participant)) error {
	return o.Do(ctx, func() {
		if _, ok := o.Meetings.Participant(meetingID, from); !ok {
			log.Debug().Str("module", "orch").Str("conn", string(from)).Str("meeting", string(meetingID)).Str("event", event).Msg("no such participant")
			return
		}
		if mutate != nil {
			o.Meetings.Update(meetingID, from, mutate)
		}
		o.relay(from, domain.MeetingRoom(meetingID), meetingID, event, "", data)
	})
}

// MeetingList lists in-memory meetings.
func (o *Orchestrator) MeetingList(ctx context.Context) ([]core.MeetingInfo, error) {
	var out []core.MeetingInfo
	err := o.Do(ctx, func() { out = o.Meetings.List() })
	return out, err
}
