package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) pongWait() time.Duration {
	return ctl.Limits.PingPeriod * 10 / 9
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.Limits.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, c *wsSignalConn) {
	defer func() {
		log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump closing")
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Limits.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !ctl.limiter.Allow(c.principal.ID) {
			log.Warn().Str("module", "signal").Str("conn", string(c.id)).Str("user", string(c.principal.ID)).Msg("rate limited")
			ctl.replyCode(ctx, c, "", codeRateLimited)
			continue
		}
		ctl.handleSignal(ctx, c, data)
	}
}

// handleSignal dispatches one inbound frame. A panic is contained to the
// frame that caused it.
func (ctl *SignalWSController) handleSignal(ctx context.Context, c *wsSignalConn, data []byte) {
	var in core.Inbound
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("conn", string(c.id)).Str("type", in.Type).Interface("panic", r).Msg("handler panic")
		}
	}()
	if err := json.Unmarshal(data, &in); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("bad json")
		return
	}

	switch in.Type {
	case core.EventPing:
		ctl.handlePing(ctx, c)
	case core.EventWhoAmI:
		ctl.handleWhoAmI(ctx, c)
	case core.EventGetOnlineUsers:
		ctl.handleOnlineUsers(ctx, c)

	case core.EventJoinRoom:
		ctl.handleJoinRoom(ctx, c, in.Data)
	case core.EventLeaveRoom:
		ctl.handleLeaveRoom(ctx, c, in.Data)
	case core.EventOffer, core.EventAnswer:
		ctl.handleRoomDescription(ctx, c, in.Type, in.Data)

	case core.EventJoinMeeting:
		ctl.handleJoinMeeting(ctx, c, in.Data)
	case core.EventPeerConnected:
		ctl.handlePeerConnected(ctx, c, in.Data)
	case core.EventGetParticipants:
		ctl.handleGetParticipants(ctx, c, in.Data)
	case core.EventLeaveMeeting:
		ctl.handleLeaveMeeting(ctx, c, in.Data)
	case core.EventReaction, core.EventRaiseHand, core.EventLowerHand,
		core.EventMuteParticipant, core.EventRemoveParticipant, core.EventParticipantUpdate,
		core.EventToggleAudio, core.EventToggleVideo, core.EventScreenShare:
		ctl.handleMeetingEvent(ctx, c, in.Type, in.Data)

	case core.EventWebRTCOffer, core.EventWebRTCAnswer, core.EventWebRTCCandidate, core.EventPeerReady:
		ctl.handleWebRTC(ctx, c, in.Type, in.Data)

	case core.EventChatMessage:
		ctl.handleChatMessage(ctx, c, in.Data)
	case core.EventTyping, core.EventStopTyping, core.EventMessagesRead:
		ctl.handleConversationEvent(ctx, c, in.Type, in.Data)
	case core.EventDocEdit, core.EventCursorMove:
		ctl.handleDocEvent(ctx, c, in.Type, in.Data)
	case core.EventTaskUpdate:
		ctl.handleTaskUpdate(ctx, c, in.Data)

	default:
		log.Debug().Str("module", "signal").Str("type", in.Type).Msg("unknown signal")
	}
}

// decode unmarshals an event payload. Failures are logged and the event is
// dropped by the caller.
func decode[T any](c *wsSignalConn, event string, raw json.RawMessage) (T, bool) {
	var v T
	if len(raw) == 0 {
		log.Debug().Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("missing payload")
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("bad payload")
		return v, false
	}
	return v, true
}
