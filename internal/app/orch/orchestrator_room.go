package orch

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

type roomNoticeData struct {
	RoomID domain.RoomName `json:"roomId"`
	ConnID domain.ConnID   `json:"connId"`
	UserID domain.UserID   `json:"userId"`
	Name   string          `json:"name"`
}

// JoinRoom adds the connection to room and tells the rest of the room.
// Joining twice, or joining from an unregistered connection, is a no-op.
func (o *Orchestrator) JoinRoom(ctx context.Context, id domain.ConnID, room domain.RoomName) error {
	return o.Do(ctx, func() {
		m, ok := o.Registry.Member(id)
		if !ok {
			log.Debug().Str("module", "orch").Str("conn", string(id)).Msg("join-room: unknown connection")
			return
		}
		if !o.Rooms.Join(id, room) {
			return
		}
		log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).Msg("joined room")
		o.broadcast(room, id, core.Envelope{
			Type: core.EventUserJoinedRoom,
			Data: roomNoticeData{RoomID: room, ConnID: id, UserID: m.Principal.ID, Name: m.Principal.Name},
		})
	})
}

// LeaveRoom is the mirror of JoinRoom; leaving a room one is not in is a no-op.
func (o *Orchestrator) LeaveRoom(ctx context.Context, id domain.ConnID, room domain.RoomName) error {
	return o.Do(ctx, func() {
		if !o.Rooms.Leave(id, room) {
			return
		}
		var p domain.Principal
		if m, ok := o.Registry.Member(id); ok {
			p = m.Principal
		}
		log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).Msg("left room")
		o.broadcast(room, id, core.Envelope{
			Type: core.EventUserLeftRoom,
			Data: roomNoticeData{RoomID: room, ConnID: id, UserID: p.ID, Name: p.Name},
		})
	})
}

// Relay fans an event out to room, excluding the sender, enriched with
// the sender's connection id and display name. Nothing is stored. Only
// members of room may relay into it; anyone else is a benign miss.
func (o *Orchestrator) Relay(ctx context.Context, from domain.ConnID, room domain.RoomName, event string, data json.RawMessage) error {
	return o.Do(ctx, func() {
		if !o.Rooms.Has(room, from) {
			log.Debug().Str("module", "orch").Str("conn", string(from)).Str("room", string(room)).Str("event", event).Msg("relay: not a member")
			return
		}
		o.relay(from, room, "", event, "", data)
	})
}

// InRoom reports whether the connection is currently a member of room.
func (o *Orchestrator) InRoom(ctx context.Context, id domain.ConnID, room domain.RoomName) (bool, error) {
	var in bool
	err := o.Do(ctx, func() { in = o.Rooms.Has(room, id) })
	return in, err
}

func (o *Orchestrator) relay(from domain.ConnID, room domain.RoomName, meetingID domain.MeetingID, event string, target domain.ConnID, data any) core.PublishResult {
	return o.broadcast(room, from, core.Envelope{
		Type:     event,
		From:     from,
		FromName: o.displayName(from, meetingID),
		TargetID: target,
		Data:     data,
	})
}

// RoomList lists live rooms with member counts.
func (o *Orchestrator) RoomList(ctx context.Context) ([]core.RoomInfo, error) {
	var out []core.RoomInfo
	err := o.Do(ctx, func() { out = o.Rooms.List() })
	return out, err
}
