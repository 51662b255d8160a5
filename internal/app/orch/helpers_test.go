package orch

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type fakeConn struct {
	id     domain.ConnID
	frames chan core.Frame

	mu     sync.Mutex
	closed bool
}

func newFakeConn(id string, buf int) *fakeConn {
	return &fakeConn{id: domain.ConnID(id), frames: make(chan core.Frame, buf)}
}

func (c *fakeConn) ID() domain.ConnID { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.frames <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type received struct {
	Type     string          `json:"type"`
	From     domain.ConnID   `json:"from"`
	FromName string          `json:"fromName"`
	TargetID domain.ConnID   `json:"targetId"`
	Data     json.RawMessage `json:"data"`
}

// next returns the next queued frame. Deliveries happen inside Do, so by the
// time a call returns its frames are already queued.
func (c *fakeConn) next(t *testing.T) received {
	t.Helper()
	select {
	case f := <-c.frames:
		var r received
		if err := json.Unmarshal(f, &r); err != nil {
			t.Fatalf("%s: bad frame %s: %v", c.id, f, err)
		}
		return r
	default:
		t.Fatalf("%s: expected a frame, got none", c.id)
		return received{}
	}
}

func (c *fakeConn) expectNone(t *testing.T) {
	t.Helper()
	select {
	case f := <-c.frames:
		t.Fatalf("%s: expected no frame, got %s", c.id, f)
	default:
	}
}

func (c *fakeConn) drain() {
	for {
		select {
		case <-c.frames:
		default:
			return
		}
	}
}

func startOrch(t *testing.T, policy app.Policy) *Orchestrator {
	t.Helper()
	o := New(policy)
	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	t.Cleanup(cancel)
	return o
}

func principal(id, name string) domain.Principal {
	return domain.Principal{ID: domain.UserID(id), Name: name, Email: id + "@example.com"}
}

func connect(t *testing.T, o *Orchestrator, c *fakeConn, p domain.Principal) {
	t.Helper()
	if err := o.Connect(context.Background(), c, p); err != nil {
		t.Fatalf("connect %s: %v", c.id, err)
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func withTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func joinMeeting(t *testing.T, o *Orchestrator, id domain.ConnID, meetingID domain.MeetingID, opts JoinOptions) {
	t.Helper()
	if _, _, err := o.JoinMeeting(withTimeout(t), id, meetingID, opts); err != nil {
		t.Fatalf("%s join %s: %v", id, meetingID, err)
	}
}
