package core

import (
	"encoding/json"

	"github.com/dkeye/Collab/internal/domain"
)

// Inbound event types.
const (
	EventJoinRoom          = "join-room"
	EventLeaveRoom         = "leave-room"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventJoinMeeting       = "join-meeting"
	EventPeerConnected     = "peer-connected"
	EventGetParticipants   = "get-participants"
	EventLeaveMeeting      = "leave-meeting"
	EventWebRTCOffer       = "webrtc-offer"
	EventWebRTCAnswer      = "webrtc-answer"
	EventWebRTCCandidate   = "webrtc-ice-candidate"
	EventPeerReady         = "peer-ready"
	EventChatMessage       = "chat-message"
	EventTyping            = "typing"
	EventStopTyping        = "stop-typing"
	EventMessagesRead      = "messages-read"
	EventReaction          = "reaction"
	EventRaiseHand         = "raise-hand"
	EventLowerHand         = "lower-hand"
	EventMuteParticipant   = "mute-participant"
	EventRemoveParticipant = "remove-participant"
	EventParticipantUpdate = "participant-update"
	EventToggleAudio       = "toggle-audio"
	EventToggleVideo       = "toggle-video"
	EventScreenShare       = "screen-share"
	EventDocEdit           = "doc-edit"
	EventCursorMove        = "cursor-move"
	EventTaskUpdate        = "task-update"
	EventGetOnlineUsers    = "get-online-users"
	EventPing              = "ping"
	EventWhoAmI            = "whoami"
)

// Outbound-only event types.
const (
	EventUserOnline          = "user-online"
	EventUserOffline         = "user-offline"
	EventOnlineUsers         = "online-users"
	EventUserJoinedRoom      = "user-joined-room"
	EventUserLeftRoom        = "user-left-room"
	EventMeetingParticipants = "meeting-participants"
	EventParticipantJoined   = "participant-joined"
	EventParticipantLeft     = "participant-left"
	EventMessageSent         = "message-sent"
	EventPong                = "pong"
	EventError               = "error"
)

// Envelope is the outbound wire shape. From/FromName are filled for
// relayed events; TargetID is carried through untouched for clients to filter on.
type Envelope struct {
	Type     string        `json:"type"`
	From     domain.ConnID `json:"from,omitempty"`
	FromName string        `json:"fromName,omitempty"`
	TargetID domain.ConnID `json:"targetId,omitempty"`
	Data     any           `json:"data,omitempty"`
}

// Inbound is the envelope every client message arrives in.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Encode(env Envelope) (Frame, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
