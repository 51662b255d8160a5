package domain

import "time"

type MeetingID string

type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// Meeting is the durable meeting row owned by the row store.
type Meeting struct {
	ID              MeetingID  `json:"id"`
	Title           string     `json:"title"`
	HostID          UserID     `json:"hostId"`
	PasswordHash    string     `json:"-"`
	MaxParticipants int        `json:"maxParticipants"`
	CreatedAt       time.Time  `json:"createdAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
}

func (m Meeting) Ended() bool { return m.EndedAt != nil }

// Attendance is one row of a meeting's durable attendance log.
type Attendance struct {
	ConnID   ConnID     `json:"connId"`
	UserID   UserID     `json:"userId"`
	Name     string     `json:"name"`
	Role     Role       `json:"role"`
	JoinedAt time.Time  `json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
}

// Participant is one connection's mutable state inside a live meeting.
// PeerID stays empty until the peer transport reports in.
type Participant struct {
	ConnID     ConnID    `json:"connId"`
	UserID     UserID    `json:"userId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	PeerID     string    `json:"peerId,omitempty"`
	Role       Role      `json:"role"`
	AudioMuted bool      `json:"audioMuted"`
	VideoMuted bool      `json:"videoMuted"`
	HandRaised bool      `json:"handRaised"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(conn ConnID, p Principal, role Role, at time.Time) Participant {
	if role == "" {
		role = RoleParticipant
	}
	return Participant{
		ConnID:   conn,
		UserID:   p.ID,
		Name:     p.Name,
		Email:    p.Email,
		Role:     role,
		JoinedAt: at,
	}
}
