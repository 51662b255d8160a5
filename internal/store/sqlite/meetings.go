package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dkeye/Collab/internal/domain"
)

// CreateMeeting stores m, filling in the id and creation time when empty.
// PasswordHash must already be hashed (see app.HashPassword).
func (s *Store) CreateMeeting(ctx context.Context, m domain.Meeting) (domain.Meeting, error) {
	if m.HostID == "" {
		return domain.Meeting{}, fmt.Errorf("create meeting: host: %w", domain.ErrBadPayload)
	}
	if m.MaxParticipants < 0 {
		return domain.Meeting{}, fmt.Errorf("create meeting: max participants: %w", domain.ErrBadPayload)
	}
	if m.ID == "" {
		m.ID = domain.MeetingID(uuid.NewString())
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	m.Title = strings.TrimSpace(m.Title)
	m.EndedAt = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, title, host_id, password_hash, max_participants, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(m.ID), m.Title, string(m.HostID), m.PasswordHash, m.MaxParticipants, formatTime(m.CreatedAt),
	)
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("create meeting %s: %w", m.ID, err)
	}
	return m, nil
}

// Meeting implements app.MeetingStore.
func (s *Store) Meeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	var (
		m       domain.Meeting
		created string
		ended   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, host_id, password_hash, max_participants, created_at, ended_at
		FROM meetings WHERE id = ?`, string(id),
	).Scan(&m.ID, &m.Title, &m.HostID, &m.PasswordHash, &m.MaxParticipants, &created, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Meeting{}, domain.ErrMeetingNotFound
	}
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("load meeting %s: %w", id, err)
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return domain.Meeting{}, err
	}
	if m.EndedAt, err = parseNullTime(ended); err != nil {
		return domain.Meeting{}, err
	}
	return m, nil
}

// EndMeeting marks the meeting ended; later joins are refused. Ending twice
// keeps the first timestamp.
func (s *Store) EndMeeting(ctx context.Context, id domain.MeetingID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET ended_at = COALESCE(ended_at, ?) WHERE id = ?`,
		formatTime(s.now()), string(id),
	)
	if err != nil {
		return fmt.Errorf("end meeting %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMeetingNotFound
	}
	return nil
}

// RecordJoin implements app.MeetingStore. A rejoin on the same connection
// reopens the attendance row.
func (s *Store) RecordJoin(ctx context.Context, id domain.MeetingID, p domain.Participant) error {
	joined := p.JoinedAt
	if joined.IsZero() {
		joined = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meeting_participants (meeting_id, conn_id, user_id, name, role, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (meeting_id, conn_id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			left_at = NULL`,
		string(id), string(p.ConnID), string(p.UserID), p.Name, string(p.Role), formatTime(joined),
	)
	if err != nil {
		return fmt.Errorf("record join %s/%s: %w", id, p.ConnID, err)
	}
	return nil
}

// RecordLeave implements app.MeetingStore. Unknown rows are ignored.
func (s *Store) RecordLeave(ctx context.Context, id domain.MeetingID, conn domain.ConnID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE meeting_participants SET left_at = ? WHERE meeting_id = ? AND conn_id = ? AND left_at IS NULL`,
		formatTime(s.now()), string(id), string(conn),
	)
	if err != nil {
		return fmt.Errorf("record leave %s/%s: %w", id, conn, err)
	}
	return nil
}

// Attendance lists everyone who ever joined the meeting, oldest first.
func (s *Store) Attendance(ctx context.Context, id domain.MeetingID) ([]domain.Attendance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conn_id, user_id, name, role, joined_at, left_at
		FROM meeting_participants WHERE meeting_id = ?
		ORDER BY joined_at, conn_id`, string(id))
	if err != nil {
		return nil, fmt.Errorf("attendance %s: %w", id, err)
	}
	defer rows.Close()

	out := make([]domain.Attendance, 0)
	for rows.Next() {
		var (
			a      domain.Attendance
			joined string
			left   sql.NullString
		)
		if err := rows.Scan(&a.ConnID, &a.UserID, &a.Name, &a.Role, &joined, &left); err != nil {
			return nil, err
		}
		if a.JoinedAt, err = parseTime(joined); err != nil {
			return nil, err
		}
		if a.LeftAt, err = parseNullTime(left); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
