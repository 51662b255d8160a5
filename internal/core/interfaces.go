package core

import (
	"errors"

	"github.com/dkeye/Collab/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is a raw encoded outbound event.
type Frame []byte

// Conn abstracts one live signaling transport.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	ID() domain.ConnID
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []Conn
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"memberCount"`
}

type MeetingInfo struct {
	ID               domain.MeetingID `json:"id"`
	ParticipantCount int              `json:"participantCount"`
}
