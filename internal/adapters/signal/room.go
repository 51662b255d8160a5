package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type roomDescriptionPayload struct {
	RoomID string          `json:"roomId"`
	SDP    json.RawMessage `json:"sdp"`
}

// room resolves the payload's room id, replying when the id names a room
// that cannot be entered this way.
func (ctl *SignalWSController) room(ctx context.Context, c *wsSignalConn, event, id string) (domain.RoomName, bool) {
	room, err := domain.ParseRoom(id)
	switch {
	case err == nil:
		return room, true
	case errors.Is(err, domain.ErrReservedRoom):
		ctl.replyError(ctx, c, event, err)
	default:
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("bad room id")
	}
	return "", false
}

func (ctl *SignalWSController) handleJoinRoom(ctx context.Context, c *wsSignalConn, data json.RawMessage) {
	p, ok := decode[roomPayload](c, core.EventJoinRoom, data)
	if !ok {
		return
	}
	room, ok := ctl.room(ctx, c, core.EventJoinRoom, p.RoomID)
	if !ok {
		return
	}
	if err := ctl.Orch.JoinRoom(ctx, c.id, room); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("join room")
	}
}

func (ctl *SignalWSController) handleLeaveRoom(ctx context.Context, c *wsSignalConn, data json.RawMessage) {
	p, ok := decode[roomPayload](c, core.EventLeaveRoom, data)
	if !ok {
		return
	}
	room, ok := ctl.room(ctx, c, core.EventLeaveRoom, p.RoomID)
	if !ok {
		return
	}
	if err := ctl.Orch.LeaveRoom(ctx, c.id, room); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("leave room")
	}
}

// handleRoomDescription relays a room-scoped offer or answer after checking
// the description parses.
func (ctl *SignalWSController) handleRoomDescription(ctx context.Context, c *wsSignalConn, event string, data json.RawMessage) {
	p, ok := decode[roomDescriptionPayload](c, event, data)
	if !ok {
		return
	}
	room, ok := ctl.room(ctx, c, event, p.RoomID)
	if !ok {
		return
	}
	want := webrtc.SDPTypeOffer
	if event == core.EventAnswer {
		want = webrtc.SDPTypeAnswer
	}
	if !validDescription(c, event, want, p.SDP) {
		return
	}
	if err := ctl.Orch.Relay(ctx, c.id, room, event, data); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("relay")
	}
}
