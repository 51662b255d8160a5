package core

import (
	"sort"

	"github.com/dkeye/Collab/internal/domain"
)

type roster struct {
	byConn map[domain.ConnID]*seat
}

type seat struct {
	p   domain.Participant
	seq uint64
}

// Departure describes one participant record removed by DisconnectAll.
// Closed is true when the meeting entry was deleted as a result.
type Departure struct {
	MeetingID   domain.MeetingID
	Participant domain.Participant
	Closed      bool
}

// Meetings maps meeting id -> connection id -> participant record.
//
// Unknown meetings and participants are benign misses: lookups return
// empty results and mutations report false, never an error. Not safe for
// concurrent use.
type Meetings struct {
	byID map[domain.MeetingID]*roster
	seq  uint64
}

func NewMeetings() *Meetings {
	return &Meetings{byID: make(map[domain.MeetingID]*roster)}
}

// JoinMeeting stores p under meetingID, creating the meeting on first join,
// and returns everyone else already in it. A repeated join from the same
// connection replaces the record but keeps its place in the roster.
func (m *Meetings) JoinMeeting(meetingID domain.MeetingID, p domain.Participant) []domain.Participant {
	r, ok := m.byID[meetingID]
	if !ok {
		r = &roster{byConn: make(map[domain.ConnID]*seat)}
		m.byID[meetingID] = r
	}
	if s, ok := r.byConn[p.ConnID]; ok {
		s.p = p
	} else {
		m.seq++
		r.byConn[p.ConnID] = &seat{p: p, seq: m.seq}
	}
	return m.Roster(meetingID, p.ConnID)
}

func (m *Meetings) Participant(meetingID domain.MeetingID, conn domain.ConnID) (domain.Participant, bool) {
	s, ok := m.seat(meetingID, conn)
	if !ok {
		return domain.Participant{}, false
	}
	return s.p, true
}

// SetPeerID records the media peer id once the peer transport connects.
func (m *Meetings) SetPeerID(meetingID domain.MeetingID, conn domain.ConnID, peerID string) (domain.Participant, bool) {
	return m.Update(meetingID, conn, func(p *domain.Participant) { p.PeerID = peerID })
}

// Update applies fn to the participant record in place.
func (m *Meetings) Update(meetingID domain.MeetingID, conn domain.ConnID, fn func(*domain.Participant)) (domain.Participant, bool) {
	s, ok := m.seat(meetingID, conn)
	if !ok {
		return domain.Participant{}, false
	}
	fn(&s.p)
	s.p.ConnID = conn
	return s.p, true
}

// Roster returns the meeting's participants in join order, except excluding.
func (m *Meetings) Roster(meetingID domain.MeetingID, excluding domain.ConnID) []domain.Participant {
	r, ok := m.byID[meetingID]
	if !ok {
		return []domain.Participant{}
	}
	seats := make([]*seat, 0, len(r.byConn))
	for id, s := range r.byConn {
		if id == excluding {
			continue
		}
		seats = append(seats, s)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].seq < seats[j].seq })
	out := make([]domain.Participant, len(seats))
	for i, s := range seats {
		out[i] = s.p
	}
	return out
}

// LeaveMeeting removes the record; the meeting entry goes with its last participant.
func (m *Meetings) LeaveMeeting(meetingID domain.MeetingID, conn domain.ConnID) (domain.Participant, bool) {
	p, ok, _ := m.remove(meetingID, conn)
	return p, ok
}

// DisconnectAll removes conn from every meeting whose mapping contains it.
//
// This scans all tracked meetings, O(meetings x participants) per call. Fine
// for tens of meetings with tens of participants; beyond that keep a
// conn -> meetings index instead.
func (m *Meetings) DisconnectAll(conn domain.ConnID) []Departure {
	ids := make([]domain.MeetingID, 0)
	for id, r := range m.byID {
		if _, ok := r.byConn[conn]; ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Departure, 0, len(ids))
	for _, id := range ids {
		p, ok, closed := m.remove(id, conn)
		if !ok {
			continue
		}
		out = append(out, Departure{MeetingID: id, Participant: p, Closed: closed})
	}
	return out
}

func (m *Meetings) Has(meetingID domain.MeetingID) bool {
	_, ok := m.byID[meetingID]
	return ok
}

func (m *Meetings) Count(meetingID domain.MeetingID) int {
	r, ok := m.byID[meetingID]
	if !ok {
		return 0
	}
	return len(r.byConn)
}

func (m *Meetings) List() []MeetingInfo {
	out := make([]MeetingInfo, 0, len(m.byID))
	for id, r := range m.byID {
		out = append(out, MeetingInfo{ID: id, ParticipantCount: len(r.byConn)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Meetings) seat(meetingID domain.MeetingID, conn domain.ConnID) (*seat, bool) {
	r, ok := m.byID[meetingID]
	if !ok {
		return nil, false
	}
	s, ok := r.byConn[conn]
	return s, ok
}

func (m *Meetings) remove(meetingID domain.MeetingID, conn domain.ConnID) (p domain.Participant, ok bool, closed bool) {
	r, ok := m.byID[meetingID]
	if !ok {
		return domain.Participant{}, false, false
	}
	s, ok := r.byConn[conn]
	if !ok {
		return domain.Participant{}, false, false
	}
	delete(r.byConn, conn)
	if len(r.byConn) == 0 {
		delete(m.byID, meetingID)
		closed = true
	}
	return s.p, true, closed
}
