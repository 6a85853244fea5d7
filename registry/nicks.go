package registry

import (
	"slices"
	"strings"
)

// Rank is the channel status marker shown before a nickname.
type Rank byte

const (
	RankNone   Rank = 0
	RankVoice  Rank = '+'
	RankHalfOp Rank = '%'
	RankOp     Rank = '@'
)

func (r Rank) String() string {
	if r == RankNone {
		return ""
	}
	return string(rune(r))
}

// ParseRank splits a NAMES entry such as "@bob" into its rank and nickname.
// Owner (~) and admin (&) markers are treated as operator.
// Only the first marker counts when a server sends several (multi-prefix).
func ParseRank(entry string) (Rank, string) {
	name := strings.TrimLeft(entry, "~&@%+")
	if len(name) == len(entry) {
		return RankNone, entry
	}
	switch entry[0] {
	case '~', '&', '@':
		return RankOp, name
	case '%':
		return RankHalfOp, name
	default:
		return RankVoice, name
	}
}

// Nick is an entry in a channel's nick list.
type Nick struct {
	Name string
	Rank Rank
}

func (n Nick) String() string {
	return n.Rank.String() + n.Name
}

func (r *Registry) nickIndex(b *Buffer, name string) int {
	return slices.IndexFunc(b.nicks, func(n Nick) bool { return r.equal(n.Name, name) })
}

// AddNick appends a nick to the buffer's list.
// It reports false, changing nothing, when the nick is already present.
func (r *Registry) AddNick(id BufferID, name string, rank Rank) bool {
	b, ok := r.Get(id)
	if !ok || r.nickIndex(b, name) >= 0 {
		return false
	}
	b.nicks = append(b.nicks, Nick{Name: name, Rank: rank})
	return true
}

// RemoveNick removes a nick and reports whether it was present.
func (r *Registry) RemoveNick(id BufferID, name string) bool {
	b, ok := r.Get(id)
	if !ok {
		return false
	}
	i := r.nickIndex(b, name)
	if i < 0 {
		return false
	}
	b.nicks = slices.Delete(b.nicks, i, i+1)
	return true
}

// RenameNick changes a nick in place, keeping its rank and position.
func (r *Registry) RenameNick(id BufferID, from, to string) bool {
	b, ok := r.Get(id)
	if !ok {
		return false
	}
	i := r.nickIndex(b, from)
	if i < 0 {
		return false
	}
	b.nicks[i].Name = to
	return true
}

// HasNick reports whether name is in the buffer's nick list.
func (r *Registry) HasNick(id BufferID, name string) bool {
	b, ok := r.Get(id)
	return ok && r.nickIndex(b, name) >= 0
}

// SetRank changes the rank of a nick already in the list.
func (r *Registry) SetRank(id BufferID, name string, rank Rank) bool {
	b, ok := r.Get(id)
	if !ok {
		return false
	}
	i := r.nickIndex(b, name)
	if i < 0 {
		return false
	}
	b.nicks[i].Rank = rank
	return true
}

// Rank returns the rank of name in the buffer.
func (r *Registry) Rank(id BufferID, name string) (Rank, bool) {
	b, ok := r.Get(id)
	if !ok {
		return RankNone, false
	}
	i := r.nickIndex(b, name)
	if i < 0 {
		return RankNone, false
	}
	return b.nicks[i].Rank, true
}

// Nicks returns a copy of the buffer's nick list.
func (r *Registry) Nicks(id BufferID) []Nick {
	b, ok := r.Get(id)
	if !ok {
		return nil
	}
	return slices.Clone(b.nicks)
}

// ClearNicks empties the buffer's nick list.
func (r *Registry) ClearNicks(id BufferID) {
	if b, ok := r.Get(id); ok {
		b.nicks = nil
		b.naming = false
	}
}

// BuffersWithNick returns the ids of the session's buffers whose nick list contains name,
// in creation order.
func (r *Registry) BuffersWithNick(sess int, name string) []BufferID {
	var ids []BufferID
	for _, b := range r.buffers {
		if b.Session == sess && b.ID != StatusBuffer && r.nickIndex(b, name) >= 0 {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// SortNicks orders the nick list alphabetically, ignoring case and rank.
func (r *Registry) SortNicks(id BufferID) {
	b, ok := r.Get(id)
	if !ok {
		return
	}
	slices.SortStableFunc(b.nicks, func(a, c Nick) int {
		return strings.Compare(r.fold.String(a.Name), r.fold.String(c.Name))
	})
}

// BeginNames starts accumulating a NAMES reply.
// The existing list is dropped the first time, so the reply replaces it.
// It reports whether this was the first reply line.
func (r *Registry) BeginNames(id BufferID) bool {
	b, ok := r.Get(id)
	if !ok || b.naming {
		return false
	}
	b.nicks = nil
	b.naming = true
	return true
}

// EndNames finishes a NAMES reply and sorts the list.
func (r *Registry) EndNames(id BufferID) {
	b, ok := r.Get(id)
	if !ok {
		return
	}
	b.naming = false
	r.SortNicks(id)
}
