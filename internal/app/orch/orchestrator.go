// Package orch owns the real-time coordination state.
//
// Registry, Rooms and Meetings are plain single-writer structures. Every
// mutation and every fan-out runs on the one goroutine started by Run, so no
// operation can observe a half-applied join or leave, and delivery order
// within a room equals arrival order at the loop. Callers reach the loop
// through Do; blocking I/O (auth, row store) stays on the caller's side.
package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

var ErrStopped = errors.New("orchestrator stopped")

type Orchestrator struct {
	Registry *core.Registry
	Rooms    *core.Rooms
	Meetings *core.Meetings
	Policy   app.Policy

	now  func() time.Time
	ops  chan func()
	done chan struct{}
}

func New(policy app.Policy) *Orchestrator {
	return &Orchestrator{
		Registry: core.NewRegistry(),
		Rooms:    core.NewRooms(),
		Meetings: core.NewMeetings(),
		Policy:   policy,
		now:      time.Now,
		ops:      make(chan func()),
		done:     make(chan struct{}),
	}
}

// Run processes submitted operations until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.done)
	log.Info().Str("module", "orch").Msg("loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("loop stopped")
			return
		case op := <-o.ops:
			op()
		}
	}
}

// Do runs fn on the loop goroutine and waits for it. A panic inside fn is
// recovered and returned as an error so one bad event cannot stop the loop.
func (o *Orchestrator) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	var err error
	op := func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("orchestrator: panic: %v", r)
				log.Error().Str("module", "orch").Interface("panic", r).Msg("recovered")
			}
		}()
		fn()
	}

	select {
	case o.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrStopped
	}
	// Once accepted the loop runs op before anything else.
	<-finished
	return err
}

// send delivers env to one connection.
func (o *Orchestrator) send(to core.Conn, env core.Envelope) {
	o.deliver([]core.Conn{to}, env)
}

// broadcast delivers env to every member of room except exclude.
// An absent or empty room is a no-op.
func (o *Orchestrator) broadcast(room domain.RoomName, exclude domain.ConnID, env core.Envelope) core.PublishResult {
	ids := o.Rooms.Members(room, exclude)
	if len(ids) == 0 {
		return core.PublishResult{}
	}
	return o.deliver(o.Registry.Lookup(ids), env)
}

// broadcastAll delivers env process-wide; only presence events use it.
func (o *Orchestrator) broadcastAll(exclude domain.ConnID, env core.Envelope) core.PublishResult {
	return o.deliver(o.Registry.Conns(exclude), env)
}

func (o *Orchestrator) deliver(targets []core.Conn, env core.Envelope) core.PublishResult {
	if len(targets) == 0 {
		return core.PublishResult{}
	}
	frame, err := core.Encode(env)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", env.Type).Msg("encode")
		return core.PublishResult{}
	}
	res := core.Deliver(targets, frame)
	log.Debug().Str("module", "orch").Str("event", env.Type).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("fan-out")
	if o.Policy == nil {
		return res
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("conn", string(slow.ID())).Msg("kicking slow consumer")
			// Closing ends the read pump, which runs Disconnect.
			slow.Close()
		case app.DropFrame, app.NoAction:
		}
	}
	return res
}

// displayName resolves the name relayed events carry: the meeting
// participant name when the sender is in that meeting, else the principal's.
func (o *Orchestrator) displayName(id domain.ConnID, meetingID domain.MeetingID) string {
	if meetingID != "" {
		if p, ok := o.Meetings.Participant(meetingID, id); ok {
			return p.Name
		}
	}
	if m, ok := o.Registry.Member(id); ok {
		return m.Principal.Name
	}
	return ""
}

// Principal returns the identity behind a live connection.
func (o *Orchestrator) Principal(ctx context.Context, id domain.ConnID) (domain.Principal, bool, error) {
	var (
		p  domain.Principal
		ok bool
	)
	err := o.Do(ctx, func() {
		var m *core.Member
		if m, ok = o.Registry.Member(id); ok {
			p = m.Principal
		}
	})
	return p, ok, err
}

// SendTo delivers one event to one connection through the loop, so direct
// replies obey the same backpressure policy as fan-out.
func (o *Orchestrator) SendTo(ctx context.Context, id domain.ConnID, event string, data any) error {
	return o.Do(ctx, func() {
		m, ok := o.Registry.Member(id)
		if !ok {
			return
		}
		o.send(m.Conn, core.Envelope{Type: event, Data: data})
	})
}
