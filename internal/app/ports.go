package app

import (
	"context"

	"github.com/dkeye/Collab/internal/domain"
)

// Authenticator verifies a bearer token once per connection handshake.
// Failures wrap domain.ErrUnauthorized. Revoking an unknown token is not
// an error.
type Authenticator interface {
	Verify(ctx context.Context, token string) (domain.Principal, error)
	RevokeToken(ctx context.Context, token string) error
}

// MeetingStore is the durable side of meetings. It is called around the
// orchestrator, never from inside it.
type MeetingStore interface {
	Meeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error)
	RecordJoin(ctx context.Context, id domain.MeetingID, p domain.Participant) error
	RecordLeave(ctx context.Context, id domain.MeetingID, conn domain.ConnID) error
}

// ChatStore persists chat lines before they are relayed.
type ChatStore interface {
	SaveMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error)
	History(ctx context.Context, room domain.RoomName, limit int) ([]domain.ChatMessage, error)
}

// MeetingAdmin creates and ends durable meetings and reads back who came.
type MeetingAdmin interface {
	CreateMeeting(ctx context.Context, m domain.Meeting) (domain.Meeting, error)
	EndMeeting(ctx context.Context, id domain.MeetingID) error
	Attendance(ctx context.Context, id domain.MeetingID) ([]domain.Attendance, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
