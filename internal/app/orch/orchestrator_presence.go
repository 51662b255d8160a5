package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

type presenceData struct {
	ID    domain.UserID `json:"id"`
	Name  string        `json:"name"`
	Email string        `json:"email,omitempty"`
}

type onlineUsersData struct {
	Users []domain.OnlineUser `json:"users"`
}

// Connect registers conn for principal, hands it the current online set and,
// if this is the principal's first live connection, announces it to
// everyone else.
func (o *Orchestrator) Connect(ctx context.Context, conn core.Conn, principal domain.Principal) error {
	return o.Do(ctx, func() {
		first := o.Registry.Register(&core.Member{
			Conn:        conn,
			Principal:   principal,
			ConnectedAt: o.now(),
		})
		o.Rooms.Join(conn.ID(), domain.PresenceRoom)
		log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Str("user", string(principal.ID)).Bool("first", first).Msg("connected")

		o.send(conn, core.Envelope{
			Type: core.EventOnlineUsers,
			Data: onlineUsersData{Users: o.Registry.Snapshot()},
		})
		if first {
			o.broadcastAll(conn.ID(), core.Envelope{
				Type: core.EventUserOnline,
				Data: presenceData{ID: principal.ID, Name: principal.Name, Email: principal.Email},
			})
		}
	})
}

// OnlineUsers lists online principals.
func (o *Orchestrator) OnlineUsers(ctx context.Context) ([]domain.OnlineUser, error) {
	var out []domain.OnlineUser
	err := o.Do(ctx, func() { out = o.Registry.List() })
	return out, err
}

// SendOnlineUsers delivers the online set to one connection.
func (o *Orchestrator) SendOnlineUsers(ctx context.Context, id domain.ConnID) error {
	return o.Do(ctx, func() {
		m, ok := o.Registry.Member(id)
		if !ok {
			return
		}
		o.send(m.Conn, core.Envelope{
			Type: core.EventOnlineUsers,
			Data: onlineUsersData{Users: o.Registry.Snapshot()},
		})
	})
}

// Disconnected is what a disconnect removed, for the caller's bookkeeping.
type Disconnected struct {
	Principal  domain.Principal
	Departures []core.Departure
	Offline    bool
}

// Disconnect tears a connection down in order: meetings first, then
// presence, then plain room memberships. Unknown ids are a no-op.
func (o *Orchestrator) Disconnect(ctx context.Context, id domain.ConnID) (Disconnected, error) {
	var out Disconnected
	err := o.Do(ctx, func() {
		// 1. meetings
		out.Departures = o.Meetings.DisconnectAll(id)
		for _, d := range out.Departures {
			room := domain.MeetingRoom(d.MeetingID)
			o.Rooms.Leave(id, room)
			o.broadcast(room, id, core.Envelope{
				Type: core.EventParticipantLeft,
				Data: participantLeftData{MeetingID: d.MeetingID, ParticipantID: id, Name: d.Participant.Name, PeerID: d.Participant.PeerID},
			})
		}

		// 2. presence
		m, last := o.Registry.Unregister(id)
		if m != nil {
			out.Principal = m.Principal
			out.Offline = last
			if last {
				o.broadcastAll(id, core.Envelope{
					Type: core.EventUserOffline,
					Data: presenceData{ID: m.Principal.ID, Name: m.Principal.Name},
				})
			}
		}

		// 3. remaining rooms
		for _, room := range o.Rooms.LeaveAll(id) {
			if room == domain.PresenceRoom {
				continue
			}
			o.broadcast(room, id, core.Envelope{
				Type: core.EventUserLeftRoom,
				Data: roomNoticeData{RoomID: room, ConnID: id, UserID: out.Principal.ID, Name: out.Principal.Name},
			})
		}
		log.Info().Str("module", "orch").Str("conn", string(id)).Int("meetings", len(out.Departures)).Bool("offline", out.Offline).Msg("disconnected")
	})
	return out, err
}
