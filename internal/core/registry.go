package core

import (
	"sort"
	"time"

	"github.com/dkeye/Collab/internal/domain"
)

// Member is a registered connection and the principal behind it.
type Member struct {
	Conn        Conn
	Principal   domain.Principal
	ConnectedAt time.Time
}

// Registry tracks connected principals process-wide.
//
// Not safe for concurrent use: the orchestrator loop is its single writer.
// The presence record is last-connection-wins, but every live connection of a
// principal is tracked so that an older socket closing never takes the
// principal offline while a newer one is still up.
type Registry struct {
	members  map[domain.ConnID]*Member
	presence map[domain.UserID]*domain.Presence
	byUser   map[domain.UserID]map[domain.ConnID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		members:  make(map[domain.ConnID]*Member),
		presence: make(map[domain.UserID]*domain.Presence),
		byUser:   make(map[domain.UserID]map[domain.ConnID]struct{}),
	}
}

// Register stores m and overwrites the principal's presence record.
// It reports whether m is the principal's first live connection.
func (r *Registry) Register(m *Member) bool {
	id := m.Conn.ID()
	uid := m.Principal.ID
	prev, seen := r.members[id]
	if seen && prev.Principal.ID != uid {
		r.dropConn(prev.Principal.ID, id)
		seen = false
	}
	r.members[id] = m

	conns, ok := r.byUser[uid]
	if !ok {
		conns = make(map[domain.ConnID]struct{})
		r.byUser[uid] = conns
	}
	conns[id] = struct{}{}

	r.presence[uid] = &domain.Presence{
		UserID:      uid,
		Email:       m.Principal.Email,
		Name:        m.Principal.Name,
		ConnID:      id,
		ConnectedAt: m.ConnectedAt,
	}
	return !seen && len(conns) == 1
}

// Unregister removes the connection. last is true when it was the
// principal's final connection and the presence record is gone.
func (r *Registry) Unregister(id domain.ConnID) (m *Member, last bool) {
	m, ok := r.members[id]
	if !ok {
		return nil, false
	}
	delete(r.members, id)
	return m, r.dropConn(m.Principal.ID, id)
}

func (r *Registry) dropConn(uid domain.UserID, id domain.ConnID) bool {
	conns := r.byUser[uid]
	delete(conns, id)
	if len(conns) == 0 {
		delete(r.byUser, uid)
		delete(r.presence, uid)
		return true
	}
	// Repoint the record at the newest surviving connection.
	if p := r.presence[uid]; p != nil && p.ConnID == id {
		var newest *Member
		for cid := range conns {
			if m := r.members[cid]; m != nil && (newest == nil || m.ConnectedAt.After(newest.ConnectedAt)) {
				newest = m
			}
		}
		if newest != nil {
			p.ConnID = newest.Conn.ID()
			p.ConnectedAt = newest.ConnectedAt
		}
	}
	return false
}

func (r *Registry) Member(id domain.ConnID) (*Member, bool) {
	m, ok := r.members[id]
	return m, ok
}

func (r *Registry) Presence(uid domain.UserID) (domain.Presence, bool) {
	p, ok := r.presence[uid]
	if !ok {
		return domain.Presence{}, false
	}
	return *p, true
}

// ConnectionsOf reports how many live connections a principal has.
func (r *Registry) ConnectionsOf(uid domain.UserID) int { return len(r.byUser[uid]) }

// Len is the number of live connections.
func (r *Registry) Len() int { return len(r.members) }

// List returns one entry per online principal, ordered by name.
func (r *Registry) List() []domain.OnlineUser {
	out := make([]domain.OnlineUser, 0, len(r.presence))
	for _, p := range r.presence {
		out = append(out, domain.OnlineUser{ID: p.UserID, Name: p.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Snapshot is the online set delivered to a freshly registered connection.
func (r *Registry) Snapshot() []domain.OnlineUser { return r.List() }

// Conns returns every live connection except exclude.
func (r *Registry) Conns(exclude domain.ConnID) []Conn {
	out := make([]Conn, 0, len(r.members))
	for id, m := range r.members {
		if id == exclude {
			continue
		}
		out = append(out, m.Conn)
	}
	return out
}

// Lookup resolves connection ids to transports, skipping unknown ids.
func (r *Registry) Lookup(ids []domain.ConnID) []Conn {
	out := make([]Conn, 0, len(ids))
	for _, id := range ids {
		if m, ok := r.members[id]; ok {
			out = append(out, m.Conn)
		}
	}
	return out
}
