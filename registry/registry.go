// Package registry tracks the conversation buffers of the client:
// the status buffer, one buffer per joined channel or private query,
// and the ranked nick list of every channel.
//
// The registry is owned by the event loop and is not safe for concurrent use.
// Other goroutines receive copies through Snapshot.
package registry

import (
	"errors"
	"slices"
	"strings"

	"github.com/Travis-Britz/ircterm/irc"
	"golang.org/x/text/cases"
)

// BufferID is a stable handle for a buffer. Ids are never reused.
type BufferID int

// StatusBuffer always exists and receives everything that has no better destination.
const StatusBuffer BufferID = 0

var (
	ErrStatusBuffer = errors.New("the status buffer cannot be closed")
	ErrNoSuchBuffer = errors.New("no such buffer")
	ErrNameTaken    = errors.New("buffer name already in use")
)

// Activity flags are set on buffers which received lines while not selected.
type Activity uint8

const (
	ActivityMessage Activity = 1 << iota
	ActivityHighlight
)

// Buffer is one conversation: the status buffer, a channel, or a private query.
type Buffer struct {
	ID       BufferID
	Name     string
	Session  int // owning session id, 0 for the status buffer
	Topic    string
	Activity Activity

	naming bool // a NAMES reply is being accumulated
	nicks  []Nick
}

// IsChannel reports whether the buffer is a channel rather than a query or the status buffer.
func (b *Buffer) IsChannel() bool {
	return b.ID != StatusBuffer && irc.IsChannel(b.Name)
}

// Registry holds every open buffer in creation order.
type Registry struct {
	buffers  []*Buffer
	next     BufferID
	selected BufferID
	previous BufferID
	fold     cases.Caser
}

func New() *Registry {
	r := &Registry{fold: cases.Fold()}
	r.buffers = []*Buffer{{ID: StatusBuffer, Name: "status"}}
	r.next = StatusBuffer + 1
	return r
}

func (r *Registry) equal(a, b string) bool {
	return a == b || r.fold.String(a) == r.fold.String(b)
}

// Get returns the buffer with id.
func (r *Registry) Get(id BufferID) (*Buffer, bool) {
	i := r.index(id)
	if i < 0 {
		return nil, false
	}
	return r.buffers[i], true
}

func (r *Registry) index(id BufferID) int {
	return slices.IndexFunc(r.buffers, func(b *Buffer) bool { return b.ID == id })
}

// Lookup finds the buffer named name (case-insensitive) belonging to session sess.
func (r *Registry) Lookup(sess int, name string) (*Buffer, bool) {
	for _, b := range r.buffers {
		if b.ID != StatusBuffer && b.Session == sess && r.equal(b.Name, name) {
			return b, true
		}
	}
	return nil, false
}

// Resolve returns the id of the buffer named name, or StatusBuffer when there is none.
func (r *Registry) Resolve(sess int, name string) BufferID {
	if b, ok := r.Lookup(sess, name); ok {
		return b.ID
	}
	return StatusBuffer
}

// Create opens a buffer for name on session sess, or returns the existing one.
func (r *Registry) Create(sess int, name string) BufferID {
	if b, ok := r.Lookup(sess, name); ok {
		return b.ID
	}
	b := &Buffer{ID: r.next, Name: name, Session: sess}
	r.next++
	r.buffers = append(r.buffers, b)
	return b.ID
}

// Close removes a buffer. The selection falls back to the previously selected buffer,
// or the status buffer.
func (r *Registry) Close(id BufferID) error {
	if id == StatusBuffer {
		return ErrStatusBuffer
	}
	i := r.index(id)
	if i < 0 {
		return ErrNoSuchBuffer
	}
	r.buffers = slices.Delete(r.buffers, i, i+1)
	if r.previous == id {
		r.previous = StatusBuffer
	}
	if r.selected == id {
		r.selected = r.previous
		r.previous = StatusBuffer
	}
	return nil
}

// Rename changes the name of a buffer, e.g. when a channel is forwarded or a query partner changes nick.
// Names are unique per session: renaming onto another buffer's name fails with ErrNameTaken.
func (r *Registry) Rename(id BufferID, name string) error {
	b, ok := r.Get(id)
	if !ok {
		return ErrNoSuchBuffer
	}
	if id == StatusBuffer {
		return ErrStatusBuffer
	}
	if other, ok := r.Lookup(b.Session, name); ok && other.ID != id {
		return ErrNameTaken
	}
	b.Name = name
	return nil
}

// Merge closes buffer from in favour of into, moving the selection along with it.
func (r *Registry) Merge(from, into BufferID) error {
	if _, ok := r.Get(into); !ok {
		return ErrNoSuchBuffer
	}
	selected := r.selected == from
	if err := r.Close(from); err != nil {
		return err
	}
	if selected {
		return r.Select(into)
	}
	return nil
}

// SetTopic records the topic of a channel buffer.
func (r *Registry) SetTopic(id BufferID, topic string) {
	if b, ok := r.Get(id); ok {
		b.Topic = topic
	}
}

// Buffers returns every buffer in creation order, status buffer first.
// The returned buffers must be treated as read-only.
func (r *Registry) Buffers() []*Buffer {
	return slices.Clone(r.buffers)
}

// SessionBuffers returns the ids of all buffers belonging to session sess, in creation order.
func (r *Registry) SessionBuffers(sess int) []BufferID {
	var ids []BufferID
	for _, b := range r.buffers {
		if b.ID != StatusBuffer && b.Session == sess {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// Select makes id the selected buffer and clears its activity flags.
func (r *Registry) Select(id BufferID) error {
	b, ok := r.Get(id)
	if !ok {
		return ErrNoSuchBuffer
	}
	if id != r.selected {
		r.previous = r.selected
		r.selected = id
	}
	b.Activity = 0
	return nil
}

// Selected returns the id of the selected buffer.
func (r *Registry) Selected() BufferID {
	return r.selected
}

// Previous swaps back to the buffer that was selected before the current one.
func (r *Registry) Previous() BufferID {
	if _, ok := r.Get(r.previous); ok {
		r.Select(r.previous)
	}
	return r.selected
}

// Next selects the buffer after the current one, wrapping around.
func (r *Registry) Next() BufferID {
	return r.step(1)
}

// Prev selects the buffer before the current one, wrapping around.
func (r *Registry) Prev() BufferID {
	return r.step(-1)
}

func (r *Registry) step(d int) BufferID {
	i := r.index(r.selected)
	n := len(r.buffers)
	i = ((i+d)%n + n) % n
	r.Select(r.buffers[i].ID)
	return r.selected
}

// MarkActivity flags a buffer which received a line. The selected buffer is never flagged.
func (r *Registry) MarkActivity(id BufferID, a Activity) {
	if id == r.selected {
		return
	}
	if b, ok := r.Get(id); ok {
		b.Activity |= a
	}
}

// Snapshot is a copy of the registry state for other goroutines, such as the UI.
type Snapshot struct {
	Buffers  []BufferInfo
	Selected BufferID
}

// BufferInfo is a copy of a Buffer.
type BufferInfo struct {
	ID       BufferID
	Name     string
	Session  int
	Topic    string
	Activity Activity
	Nicks    []Nick
}

// Snapshot copies the current buffers.
func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		Buffers:  make([]BufferInfo, 0, len(r.buffers)),
		Selected: r.selected,
	}
	for _, b := range r.buffers {
		s.Buffers = append(s.Buffers, BufferInfo{
			ID:       b.ID,
			Name:     b.Name,
			Session:  b.Session,
			Topic:    b.Topic,
			Activity: b.Activity,
			Nicks:    slices.Clone(b.nicks),
		})
	}
	return s
}

// Find returns the info of the buffer with id.
func (s Snapshot) Find(id BufferID) (BufferInfo, bool) {
	for _, b := range s.Buffers {
		if b.ID == id {
			return b, true
		}
	}
	return BufferInfo{}, false
}

// Names is the buffer's nick list as displayed, with rank markers.
func (b BufferInfo) Names() string {
	names := make([]string, len(b.Nicks))
	for i, n := range b.Nicks {
		names[i] = n.String()
	}
	return strings.Join(names, " ")
}
