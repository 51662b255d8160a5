package domain

import (
	"errors"
	"strings"
)

type RoomName string

const (
	// PresenceRoom is the general namespace every registered connection sits in.
	PresenceRoom RoomName = "presence"

	prefixSignal       = "signal:"
	prefixMeeting      = "meeting:"
	prefixDoc          = "doc:"
	prefixTask         = "task:"
	prefixConversation = "conversation:"
)

var ErrReservedRoom = errors.New("reserved room")

func SignalRoom(id string) RoomName { return RoomName(prefixSignal + id) }

func MeetingRoom(id MeetingID) RoomName { return RoomName(prefixMeeting + string(id)) }

func DocRoom(id string) RoomName { return RoomName(prefixDoc + id) }

func TaskRoom(id string) RoomName { return RoomName(prefixTask + id) }

func ConversationRoom(id string) RoomName { return RoomName(prefixConversation + id) }

func (r RoomName) IsMeeting() bool { return strings.HasPrefix(string(r), prefixMeeting) }

// ParseRoom maps a client-supplied room id to a room name. Ids carrying the
// doc:, task:, conversation: or signal: prefix are taken as is; bare ids land
// in the signal namespace. Meeting rooms and the presence room are only
// entered through their own operations.
func ParseRoom(id string) (RoomName, error) {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return "", ErrBadPayload
	case id == string(PresenceRoom), strings.HasPrefix(id, prefixMeeting):
		return "", ErrReservedRoom
	}
	for _, prefix := range []string{prefixDoc, prefixTask, prefixConversation, prefixSignal} {
		if strings.HasPrefix(id, prefix) {
			if len(id) == len(prefix) {
				return "", ErrBadPayload
			}
			return RoomName(id), nil
		}
	}
	return SignalRoom(id), nil
}
