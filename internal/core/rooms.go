package core

import (
	"sort"

	"github.com/dkeye/Collab/internal/domain"
)

// Rooms partitions connections into named broadcast scopes.
// A room exists while it has at least one member; the last Leave deletes it.
// Not safe for concurrent use.
type Rooms struct {
	members map[domain.RoomName]map[domain.ConnID]struct{}
	joined  map[domain.ConnID]map[domain.RoomName]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[domain.RoomName]map[domain.ConnID]struct{}),
		joined:  make(map[domain.ConnID]map[domain.RoomName]struct{}),
	}
}

// Join adds id to room. It reports false if id was already a member.
func (r *Rooms) Join(id domain.ConnID, room domain.RoomName) bool {
	set, ok := r.members[room]
	if !ok {
		set = make(map[domain.ConnID]struct{})
		r.members[room] = set
	}
	if _, ok := set[id]; ok {
		return false
	}
	set[id] = struct{}{}

	rs, ok := r.joined[id]
	if !ok {
		rs = make(map[domain.RoomName]struct{})
		r.joined[id] = rs
	}
	rs[room] = struct{}{}
	return true
}

// Leave removes id from room. It reports false if id was not a member.
func (r *Rooms) Leave(id domain.ConnID, room domain.RoomName) bool {
	set, ok := r.members[room]
	if !ok {
		return false
	}
	if _, ok := set[id]; !ok {
		return false
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.members, room)
	}
	if rs, ok := r.joined[id]; ok {
		delete(rs, room)
		if len(rs) == 0 {
			delete(r.joined, id)
		}
	}
	return true
}

// LeaveAll drops id from every room it is in and returns those rooms.
func (r *Rooms) LeaveAll(id domain.ConnID) []domain.RoomName {
	rooms := r.RoomsOf(id)
	for _, room := range rooms {
		r.Leave(id, room)
	}
	return rooms
}

func (r *Rooms) Has(room domain.RoomName, id domain.ConnID) bool {
	_, ok := r.members[room][id]
	return ok
}

func (r *Rooms) Count(room domain.RoomName) int { return len(r.members[room]) }

// Members lists room members except exclude. Absent rooms yield nil.
func (r *Rooms) Members(room domain.RoomName, exclude domain.ConnID) []domain.ConnID {
	set, ok := r.members[room]
	if !ok {
		return nil
	}
	out := make([]domain.ConnID, 0, len(set))
	for id := range set {
		if id == exclude {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Rooms) RoomsOf(id domain.ConnID) []domain.RoomName {
	rs := r.joined[id]
	out := make([]domain.RoomName, 0, len(rs))
	for room := range rs {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Rooms) List() []RoomInfo {
	out := make([]RoomInfo, 0, len(r.members))
	for name, set := range r.members {
		out = append(out, RoomInfo{Name: name, MemberCount: len(set)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
