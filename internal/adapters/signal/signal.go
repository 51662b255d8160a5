// Package signal is the WebSocket side of the coordination core: it owns the
// socket, decodes inbound events and turns them into orchestrator calls.
package signal

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

type Limits struct {
	SendBuffer int
	ReadLimit  int64
	PingPeriod time.Duration
	EventRate  rate.Limit
	EventBurst int
	// Fallback cap for meetings whose row sets none; 0 means unlimited.
	MaxParticipants int
}

func DefaultLimits() Limits {
	return Limits{
		SendBuffer: 64,
		ReadLimit:  64 << 10,
		PingPeriod: 54 * time.Second,
		EventRate:  20,
		EventBurst: 40,
	}
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Meetings app.MeetingStore // optional
	Chat     app.ChatStore    // optional
	Limits   Limits

	limiter  *EventRateLimiter
	upgrader websocket.Upgrader
}

// NewSignalWSController wires the controller. An empty origins list accepts
// any origin.
func NewSignalWSController(o *orch.Orchestrator, meetings app.MeetingStore, chat app.ChatStore, limits Limits, origins []string) *SignalWSController {
	return &SignalWSController{
		Orch:     o,
		Meetings: meetings,
		Chat:     chat,
		Limits:   limits,
		limiter:  NewEventRateLimiter(limits.EventRate, limits.EventBurst),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || slices.Contains(origins, origin)
			},
		},
	}
}

// wsSignalConn is the core.Conn of one WebSocket.
type wsSignalConn struct {
	id        domain.ConnID
	principal domain.Principal
	conn      *websocket.Conn
	send      chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, p domain.Principal, buffer int) *wsSignalConn {
	return &wsSignalConn{
		id:        domain.NewConnID(),
		principal: p,
		conn:      ws,
		send:      make(chan core.Frame, buffer),
	}
}

func (c *wsSignalConn) ID() domain.ConnID { return c.id }

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close is idempotent. Closing the socket unblocks the read pump, which then
// runs the disconnect path.
func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and serves the socket until it closes.
// principal has already been verified by the HTTP layer.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, principal domain.Principal) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, principal, ctl.Limits.SendBuffer)
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Str("user", string(principal.ID)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := ctl.Orch.Connect(ctx, conn, principal); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(conn.id)).Msg("register")
		conn.Close()
		return
	}

	var wg conc.WaitGroup
	wg.Go(func() { ctl.writePump(ctx, conn) })
	wg.Go(func() {
		defer cancel()
		ctl.readPump(ctx, conn)
	})
	wg.Wait()

	ctl.disconnect(conn)
}

// disconnect runs after both pumps are gone. It uses its own context: the
// request context may already be cancelled by server shutdown.
func (ctl *SignalWSController) disconnect(c *wsSignalConn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := ctl.Orch.Disconnect(ctx, c.id)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("disconnect")
		return
	}
	if ctl.Meetings != nil {
		for _, d := range out.Departures {
			if err := ctl.Meetings.RecordLeave(ctx, d.MeetingID, c.id); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("meeting", string(d.MeetingID)).Msg("record leave")
			}
		}
	}
	if out.Offline {
		ctl.limiter.Forget(c.principal.ID)
	}
	log.Info().Str("module", "signal").Str("conn", string(c.id)).Bool("offline", out.Offline).Msg("WS connection closed")
}
