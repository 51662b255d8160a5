package core

import (
	"time"

	"github.com/dkeye/Collab/internal/domain"
)

type stubConn struct {
	id     domain.ConnID
	frames []Frame
	full   bool
	closed bool
}

func newStubConn(id string) *stubConn { return &stubConn{id: domain.ConnID(id)} }

func (c *stubConn) ID() domain.ConnID { return c.id }

func (c *stubConn) TrySend(f Frame) error {
	if c.closed {
		return ErrConnClosed
	}
	if c.full {
		return ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *stubConn) Close() { c.closed = true }

func member(c Conn, uid, name string, at time.Time) *Member {
	return &Member{
		Conn:        c,
		Principal:   domain.Principal{ID: domain.UserID(uid), Name: name, Email: uid + "@example.com"},
		ConnectedAt: at,
	}
}
