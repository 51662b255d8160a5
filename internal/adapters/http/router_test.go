package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/config"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/store/sqlite"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

const testSDP = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

type env struct {
	srv   *httptest.Server
	store *sqlite.Store
	orch  *orch.Orchestrator
}

func testConfig() *config.Config {
	return &config.Config{
		Mode:       "test",
		Port:       8080,
		Secret:     "test-secret",
		ReadLimit:  1 << 16,
		PingPeriod: time.Minute,
		SendBuffer: 32,
		EventRate:  100,
		EventBurst: 100,
	}
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	st, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	o := orch.New(app.SimplePolicy{})
	go o.Run(ctx)

	r := SetupRouter(ctx, testConfig(), Deps{Orch: o, Auth: st, Meetings: st, Admin: st, Chat: st, DB: st})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = st.Close()
	})
	return &env{srv: srv, store: st, orch: o}
}

func (e *env) user(t *testing.T, email, name string) (domain.Principal, string) {
	t.Helper()
	ctx := context.Background()
	p, err := e.store.EnsureUser(ctx, email, name)
	if err != nil {
		t.Fatal(err)
	}
	token, err := e.store.IssueToken(ctx, p.ID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return p, token
}

func (e *env) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

type frame struct {
	Type     string          `json:"type"`
	From     domain.ConnID   `json:"from"`
	FromName string          `json:"fromName"`
	Data     json.RawMessage `json:"data"`
}

func (e *env) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func expect(t *testing.T, ws *websocket.Conn, event string) frame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatalf("waiting for %s: %v", event, err)
	}
	if f.Type != event {
		t.Fatalf("expected %s, got %s (%s)", event, f.Type, f.Data)
	}
	return f
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	if err := ws.WriteJSON(map[string]any{"type": event, "data": data}); err != nil {
		t.Fatal(err)
	}
}

func TestHealthzAndAuth(t *testing.T) {
	e := setup(t)
	if resp := e.do(t, http.MethodGet, "/healthz", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodGet, "/api/presence", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodGet, "/api/presence", "forged", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", resp.StatusCode)
	}

	p, token := e.user(t, "ann@example.com", "Ann")
	resp := e.do(t, http.MethodGet, "/api/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: %d", resp.StatusCode)
	}
	if got := decodeBody[domain.Principal](t, resp); got != p {
		t.Fatalf("me = %+v, want %+v", got, p)
	}

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws"
	_, hs, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("socket without token should be refused")
	}
	if hs == nil || hs.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake, got %v", hs)
	}
}

func TestSessionCookie(t *testing.T) {
	e := setup(t)
	_, token := e.user(t, "ann@example.com", "Ann")

	resp := e.do(t, http.MethodPost, "/api/session", "", map[string]string{"token": token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create session: %d", resp.StatusCode)
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/api/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	me, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer me.Body.Close()
	if me.StatusCode != http.StatusOK {
		t.Fatalf("cookie auth: %d", me.StatusCode)
	}

	if resp := e.do(t, http.MethodPost, "/api/session", "", map[string]string{"token": "nope"}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", resp.StatusCode)
	}

	// Logging out revokes the token itself, not just the cookie.
	req, _ = http.NewRequest(http.MethodDelete, e.srv.URL+"/api/session", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	out, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Body.Close()
	if out.StatusCode != http.StatusNoContent {
		t.Fatalf("delete session: %d", out.StatusCode)
	}
	if resp := e.do(t, http.MethodGet, "/api/me", token, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token still accepted: %d", resp.StatusCode)
	}
}

func TestHealthzReportsStore(t *testing.T) {
	e := setup(t)
	if resp := e.do(t, http.MethodGet, "/healthz", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	_ = e.store.Close()
	if resp := e.do(t, http.MethodGet, "/healthz", "", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("healthz with closed store: %d", resp.StatusCode)
	}
}

func TestMeetingEndToEnd(t *testing.T) {
	e := setup(t)
	_, hostToken := e.user(t, "ann@example.com", "Ann")
	_, guestToken := e.user(t, "bob@example.com", "Bob")

	resp := e.do(t, http.MethodPost, "/api/meetings", hostToken, map[string]any{"title": "Standup", "password": "pw", "maxParticipants": 5})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create meeting: %d", resp.StatusCode)
	}
	m := decodeBody[domain.Meeting](t, resp)

	a := e.dial(t, hostToken)
	expect(t, a, core.EventOnlineUsers)
	send(t, a, core.EventJoinMeeting, map[string]any{"meetingId": m.ID, "password": "pw"})
	expect(t, a, core.EventMeetingParticipants)

	b := e.dial(t, guestToken)
	expect(t, b, core.EventOnlineUsers)
	expect(t, a, core.EventUserOnline)
	send(t, b, core.EventJoinMeeting, map[string]any{"meetingId": m.ID, "password": "pw"})
	expect(t, b, core.EventMeetingParticipants)
	expect(t, a, core.EventParticipantJoined)

	send(t, a, core.EventWebRTCOffer, map[string]any{"meetingId": m.ID, "sdp": map[string]string{"type": "offer", "sdp": testSDP}})
	if got := expect(t, b, core.EventWebRTCOffer); got.FromName != "Ann" {
		t.Fatalf("offer sender name: %+v", got)
	}

	send(t, b, core.EventChatMessage, map[string]any{"meetingId": m.ID, "content": "hello"})
	expect(t, a, core.EventChatMessage)
	expect(t, b, core.EventMessageSent)

	roster := decodeBody[struct {
		Participants []domain.Participant `json:"participants"`
	}](t, e.do(t, http.MethodGet, "/api/meetings/"+string(m.ID)+"/participants", hostToken, nil))
	if len(roster.Participants) != 2 {
		t.Fatalf("live roster: %+v", roster)
	}

	history := decodeBody[struct {
		Messages []domain.ChatMessage `json:"messages"`
	}](t, e.do(t, http.MethodGet, "/api/meetings/"+string(m.ID)+"/messages?limit=10", guestToken, nil))
	if len(history.Messages) != 1 || history.Messages[0].Content != "hello" || history.Messages[0].SenderName != "Bob" {
		t.Fatalf("history: %+v", history)
	}

	// Someone who never attended reads neither the chat nor the log.
	_, strangerToken := e.user(t, "eve@example.com", "Eve")
	if resp := e.do(t, http.MethodGet, "/api/meetings/"+string(m.ID)+"/messages", strangerToken, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger read history: %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodGet, "/api/meetings/"+string(m.ID)+"/attendance", guestToken, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("guest read attendance: %d", resp.StatusCode)
	}
	attendance := decodeBody[struct {
		Attendance []domain.Attendance `json:"attendance"`
	}](t, e.do(t, http.MethodGet, "/api/meetings/"+string(m.ID)+"/attendance", hostToken, nil))
	if len(attendance.Attendance) != 2 || attendance.Attendance[0].Name != "Ann" {
		t.Fatalf("attendance: %+v", attendance)
	}
	if resp := e.do(t, http.MethodGet, "/api/meetings/nope/messages", hostToken, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown meeting history: %d", resp.StatusCode)
	}

	if resp := e.do(t, http.MethodPost, "/api/meetings/"+string(m.ID)+"/end", guestToken, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("guest ended meeting: %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodPost, "/api/meetings/"+string(m.ID)+"/end", hostToken, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("host end: %d", resp.StatusCode)
	}

	// A third user cannot join an ended meeting.
	_, lateToken := e.user(t, "cid@example.com", "Cid")
	c := e.dial(t, lateToken)
	expect(t, c, core.EventOnlineUsers)
	send(t, c, core.EventJoinMeeting, map[string]any{"meetingId": m.ID, "password": "pw"})
	errFrame := expect(t, c, core.EventError)
	if !strings.Contains(string(errFrame.Data), "meeting_ended") {
		t.Fatalf("expected meeting_ended, got %s", errFrame.Data)
	}

	// Dropping A cleans its seat and records the leave.
	_ = a.Close()
	expect(t, b, core.EventUserOnline) // Cid
	expect(t, b, core.EventParticipantLeft)
	deadline := time.Now().Add(2 * time.Second)
	for {
		rows, err := e.store.Attendance(context.Background(), m.ID)
		if err != nil {
			t.Fatal(err)
		}
		left := 0
		for _, r := range rows {
			if r.LeftAt != nil {
				left++
			}
		}
		if left == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("leave not recorded: %+v", rows)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestICEServersDefault(t *testing.T) {
	e := setup(t)
	_, token := e.user(t, "ann@example.com", "Ann")
	body := decodeBody[struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
	}](t, e.do(t, http.MethodGet, "/api/ice-servers", token, nil))
	if len(body.ICEServers) != 1 || !strings.HasPrefix(body.ICEServers[0].URLs[0], "stun:") {
		t.Fatalf("unexpected ice servers %+v", body)
	}
}
