package sqlite

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/domain"
)

var (
	_ app.Authenticator = (*Store)(nil)
	_ app.MeetingStore  = (*Store)(nil)
	_ app.MeetingAdmin  = (*Store)(nil)
	_ app.ChatStore     = (*Store)(nil)
	_ app.Pinger        = (*Store)(nil)
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// fixedClock makes the store's clock controllable.
func fixedClock(s *Store, start time.Time) *time.Time {
	now := start
	s.now = func() time.Time { return now }
	return &now
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, err := s.Version(ctx)
	if err != nil || v != len(migrations) {
		t.Fatalf("version = %d, %v", v, err)
	}
}

func TestAuth_IssueVerifyRevoke(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.EnsureUser(ctx, " Ann@Example.com ", "Ann")
	if err != nil {
		t.Fatal(err)
	}
	again, err := s.EnsureUser(ctx, "ann@example.com", "Someone else")
	if err != nil || again.ID != p.ID || again.Name != "Ann" {
		t.Fatalf("EnsureUser should return the existing row, got %+v %v", again, err)
	}

	token, err := s.IssueToken(ctx, p.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Verify(ctx, token)
	if err != nil || got != p {
		t.Fatalf("Verify = %+v, %v; want %+v", got, err, p)
	}

	if _, err := s.Verify(ctx, "nope"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("unknown token: %v", err)
	}
	if _, err := s.Verify(ctx, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("empty token: %v", err)
	}

	if err := s.RevokeToken(ctx, token); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Verify(ctx, token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("revoked token: %v", err)
	}
}

func TestAuth_Expiry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := fixedClock(s, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	p, _ := s.EnsureUser(ctx, "bob@example.com", "")
	if p.Name != "bob" {
		t.Fatalf("name should default to the email local part, got %q", p.Name)
	}
	token, err := s.IssueToken(ctx, p.ID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Verify(ctx, token); err != nil {
		t.Fatalf("fresh token: %v", err)
	}
	*now = now.Add(time.Hour)
	if _, err := s.Verify(ctx, token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expired token: %v", err)
	}
}

func TestMeetings_CreateLoadEnd(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	host, _ := s.EnsureUser(ctx, "host@example.com", "Host")

	hash, err := app.HashPassword("secret")
	if err != nil {
		t.Fatal(err)
	}
	m, err := s.CreateMeeting(ctx, domain.Meeting{Title: " Standup ", HostID: host.ID, PasswordHash: hash, MaxParticipants: 4})
	if err != nil {
		t.Fatal(err)
	}
	if m.ID == "" || m.Title != "Standup" {
		t.Fatalf("unexpected meeting %+v", m)
	}

	loaded, err := s.Meeting(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.HostID != host.ID || loaded.MaxParticipants != 4 || loaded.Ended() {
		t.Fatalf("unexpected row %+v", loaded)
	}
	if err := app.Admit(loaded, "secret"); err != nil {
		t.Fatalf("admit with right password: %v", err)
	}

	if err := s.EndMeeting(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	loaded, _ = s.Meeting(ctx, m.ID)
	if !errors.Is(app.Admit(loaded, "secret"), domain.ErrMeetingEnded) {
		t.Fatal("ended meeting should refuse joins")
	}

	if _, err := s.Meeting(ctx, "missing"); !errors.Is(err, domain.ErrMeetingNotFound) {
		t.Fatalf("missing meeting: %v", err)
	}
	if err := s.EndMeeting(ctx, "missing"); !errors.Is(err, domain.ErrMeetingNotFound) {
		t.Fatalf("end missing meeting: %v", err)
	}
	if _, err := s.CreateMeeting(ctx, domain.Meeting{}); !errors.Is(err, domain.ErrBadPayload) {
		t.Fatalf("meeting without host: %v", err)
	}
}

func TestMeetings_Attendance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := fixedClock(s, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	host, _ := s.EnsureUser(ctx, "host@example.com", "Host")
	m, _ := s.CreateMeeting(ctx, domain.Meeting{HostID: host.ID})

	p := domain.NewParticipant("c1", host, domain.RoleHost, *now)
	if err := s.RecordJoin(ctx, m.ID, p); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(time.Minute)
	if err := s.RecordLeave(ctx, m.ID, "c1"); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordLeave(ctx, m.ID, "ghost"); err != nil {
		t.Fatalf("unknown leave should be ignored: %v", err)
	}

	rows, err := s.Attendance(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].LeftAt == nil || rows[0].Role != domain.RoleHost {
		t.Fatalf("unexpected attendance %+v", rows)
	}

	// Rejoin on the same connection reopens the row.
	if err := s.RecordJoin(ctx, m.ID, p); err != nil {
		t.Fatal(err)
	}
	rows, _ = s.Attendance(ctx, m.ID)
	if len(rows) != 1 || rows[0].LeftAt != nil {
		t.Fatalf("rejoin should reopen the row, got %+v", rows)
	}

	if err := s.RecordJoin(ctx, "missing", p); err == nil {
		t.Fatal("join for an unknown meeting should violate the foreign key")
	}
}

func TestChat_SaveAndHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := fixedClock(s, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	room := domain.ConversationRoom("c1")

	for _, text := range []string{"one", "two", "three"} {
		msg, err := s.SaveMessage(ctx, domain.ChatMessage{Room: room, SenderID: "u1", SenderName: "Ann", Content: text})
		if err != nil {
			t.Fatal(err)
		}
		if msg.ID == "" {
			t.Fatal("id should be assigned")
		}
		*now = now.Add(time.Second)
	}
	s.SaveMessage(ctx, domain.ChatMessage{Room: domain.ConversationRoom("other"), SenderID: "u1", Content: "elsewhere"})

	got, err := s.History(ctx, room, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Content != "two" || got[1].Content != "three" {
		t.Fatalf("want the last two oldest first, got %+v", got)
	}

	all, _ := s.History(ctx, room, 0)
	if len(all) != 3 {
		t.Fatalf("default limit should return all three, got %d", len(all))
	}

	if _, err := s.SaveMessage(ctx, domain.ChatMessage{Room: room, SenderID: "u1", Content: "   "}); !errors.Is(err, domain.ErrBadPayload) {
		t.Fatalf("blank message: %v", err)
	}
}
