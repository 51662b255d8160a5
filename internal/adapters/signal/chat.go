package signal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

const maxChatLen = 4000

// conversationScope is shared by chat events: exactly one of the ids is set.
type conversationScope struct {
	ConversationID string           `json:"conversationId,omitempty"`
	MeetingID      domain.MeetingID `json:"meetingId,omitempty"`
}

func (s conversationScope) room() (domain.RoomName, bool) {
	switch {
	case s.ConversationID != "" && s.MeetingID == "":
		return domain.ConversationRoom(s.ConversationID), true
	case s.MeetingID != "" && s.ConversationID == "":
		return domain.MeetingRoom(s.MeetingID), true
	}
	return "", false
}

type chatPayload struct {
	conversationScope
	Content  string `json:"content"`
	ClientID string `json:"clientId,omitempty"`
}

type chatData struct {
	conversationScope
	Message domain.ChatMessage `json:"message"`
}

type messageSentData struct {
	ClientID string             `json:"clientId,omitempty"`
	Message  domain.ChatMessage `json:"message"`
}

type docPayload struct {
	DocID string `json:"docId"`
}

type taskPayload struct {
	TaskID string `json:"taskId,omitempty"`
	TeamID string `json:"teamId,omitempty"`
}

// handleChatMessage persists first, then relays the stored message and acks
// the sender. A store failure relays nothing, and a sender outside the room
// stores nothing.
func (ctl *SignalWSController) handleChatMessage(ctx context.Context, c *wsSignalConn, data json.RawMessage) {
	p, ok := decode[chatPayload](c, core.EventChatMessage, data)
	if !ok {
		return
	}
	room, ok := p.room()
	content := strings.TrimSpace(p.Content)
	if !ok || content == "" || len(content) > maxChatLen {
		log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("chat-message: dropped")
		return
	}
	in, err := ctl.Orch.InRoom(ctx, c.id, room)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("chat membership")
		return
	}
	if !in {
		log.Debug().Str("module", "signal").Str("conn", string(c.id)).Str("room", string(room)).Msg("chat-message: not a member")
		return
	}

	msg := domain.ChatMessage{
		Room:       room,
		SenderID:   c.principal.ID,
		SenderName: c.principal.Name,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if ctl.Chat != nil {
		saved, err := ctl.Chat.SaveMessage(ctx, msg)
		if err != nil {
			ctl.replyError(ctx, c, core.EventChatMessage, err)
			return
		}
		msg = saved
	} else {
		msg.ID = ulid.Make().String()
	}

	out, err := json.Marshal(chatData{conversationScope: p.conversationScope, Message: msg})
	if err != nil {
		ctl.replyError(ctx, c, core.EventChatMessage, err)
		return
	}
	if err := ctl.Orch.Relay(ctx, c.id, room, core.EventChatMessage, out); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("chat relay")
		return
	}
	ctl.reply(ctx, c, core.EventMessageSent, messageSentData{ClientID: p.ClientID, Message: msg})
}

// handleConversationEvent relays typing and read receipts; nothing is stored.
func (ctl *SignalWSController) handleConversationEvent(ctx context.Context, c *wsSignalConn, event string, data json.RawMessage) {
	p, ok := decode[conversationScope](c, event, data)
	if !ok {
		return
	}
	room, ok := p.room()
	if !ok {
		return
	}
	if err := ctl.Orch.Relay(ctx, c.id, room, event, data); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("relay")
	}
}

func (ctl *SignalWSController) handleDocEvent(ctx context.Context, c *wsSignalConn, event string, data json.RawMessage) {
	p, ok := decode[docPayload](c, event, data)
	if !ok || strings.TrimSpace(p.DocID) == "" {
		return
	}
	if err := ctl.Orch.Relay(ctx, c.id, domain.DocRoom(p.DocID), event, data); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("relay")
	}
}

func (ctl *SignalWSController) handleTaskUpdate(ctx context.Context, c *wsSignalConn, data json.RawMessage) {
	p, ok := decode[taskPayload](c, core.EventTaskUpdate, data)
	if !ok {
		return
	}
	id := p.TaskID
	if id == "" {
		id = p.TeamID
	}
	if strings.TrimSpace(id) == "" {
		return
	}
	if err := ctl.Orch.Relay(ctx, c.id, domain.TaskRoom(id), core.EventTaskUpdate, data); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("relay")
	}
}
