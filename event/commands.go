package event

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/Travis-Britz/ircterm/irc"
	"github.com/Travis-Britz/ircterm/registry"
	"go.uber.org/zap"
)

// onJoin: ":nick!user@host JOIN #chan"
//
// Our own JOIN confirms a join we asked for and opens (or reopens) the buffer.
func (d *Dispatcher) onJoin(s Session, m *irc.Message) {
	ch := m.Params.Get(1)
	nick := m.Source.Nick.String()

	id := d.reg.Resolve(s.ID(), ch)
	if s.IsMe(nick) {
		id = d.reg.Create(s.ID(), ch)
		d.reg.Select(id)
	}
	d.render(id, "  ->>>> %s%s%s (%s) has joined %s%s%s", bold, nick, bold, m.Source.Address(), bold, ch, bold)
	if id != registry.StatusBuffer {
		d.reg.AddNick(id, nick, registry.RankNone)
	}
}

// onPart: ":nick!user@host PART #chan :reason"
//
// Leaving a channel ourselves closes its buffer.
func (d *Dispatcher) onPart(s Session, m *irc.Message) {
	ch := m.Params.Get(1)
	reason := m.Params.Get(2)
	nick := m.Source.Nick.String()

	id := d.reg.Resolve(s.ID(), ch)
	if s.IsMe(nick) && id != registry.StatusBuffer {
		d.reg.Close(id)
		d.status(s, "You have left %s%s%s [%s]", bold, ch, bold, reason)
		return
	}
	d.reg.RemoveNick(id, nick)
	d.render(id, "  <<<<- %s (%s) has left %s%s%s [%s]", nick, m.Source.Address(), bold, ch, bold, reason)
}

// onQuit: ":nick!user@host QUIT :reason"
//
// A quit is shown in every buffer the user was visible in.
func (d *Dispatcher) onQuit(s Session, m *irc.Message) {
	nick := m.Source.Nick.String()
	line := fmt.Sprintf("  <<<<- %s (%s) has quit [%s]", nick, m.Source.Address(), m.Params.Get(1))

	ids := d.reg.BuffersWithNick(s.ID(), nick)
	for _, id := range ids {
		d.reg.RemoveNick(id, nick)
		d.sink.Render(id, line)
	}
	if b, ok := d.reg.Lookup(s.ID(), nick); ok && !b.IsChannel() {
		d.sink.Render(b.ID, line)
	}
}

// onKick: ":op!user@host KICK #chan victim :reason"
//
// Being kicked keeps the buffer open so the conversation stays readable, but empties its nick list.
func (d *Dispatcher) onKick(s Session, m *irc.Message) {
	ch := m.Params.Get(1)
	victim := m.Params.Get(2)
	id := d.reg.Resolve(s.ID(), ch)

	d.render(id, "  *** %s%s%s kicked by %s from %s%s%s [%s]", bold, victim, bold, m.Source.Nick, bold, ch, bold, m.Params.Get(3))
	if s.IsMe(victim) {
		d.reg.ClearNicks(id)
		return
	}
	d.reg.RemoveNick(id, victim)
}

// onNick: ":old!user@host NICK new"
func (d *Dispatcher) onNick(s Session, m *irc.Message) {
	old := m.Source.Nick.String()
	nick := m.Params.Get(1)
	line := fmt.Sprintf("  *** %s is now %s%s%s", old, bold, nick, bold)

	ids := d.reg.BuffersWithNick(s.ID(), old)
	for _, id := range ids {
		d.reg.RenameNick(id, old, nick)
		d.sink.Render(id, line)
	}

	// a private conversation follows the nick
	if b, ok := d.reg.Lookup(s.ID(), old); ok && !b.IsChannel() {
		d.sink.Render(d.follow(s, b.ID, nick), line)
	}

	if s.IsMe(old) && len(ids) == 0 {
		d.status(s, "You are now known as %s%s%s", bold, nick, bold)
	}
}

// follow renames buffer id to name. When the session already has a buffer called name,
// id is closed and the existing buffer is kept instead. It returns the surviving buffer.
func (d *Dispatcher) follow(s Session, id registry.BufferID, name string) registry.BufferID {
	err := d.reg.Rename(id, name)
	if !errors.Is(err, registry.ErrNameTaken) {
		return id
	}
	into := d.reg.Resolve(s.ID(), name)
	if err := d.reg.Merge(id, into); err != nil {
		d.logger.Warn("merge buffer", zap.String("server", s.Name()), zap.Error(err))
		return id
	}
	return into
}

// onTopic: ":nick!user@host TOPIC #chan :new topic"
func (d *Dispatcher) onTopic(s Session, m *irc.Message) {
	ch := m.Params.Get(1)
	topic := m.Params.Get(2)
	id := d.reg.Resolve(s.ID(), ch)
	d.reg.SetTopic(id, topic)
	d.render(id, "  *** New topic of %s%s%s set by %s%s%s: %s", bold, ch, bold, bold, m.Source.Nick, bold, topic)
}

// onInvite: ":nick!user@host INVITE me #chan"
func (d *Dispatcher) onInvite(s Session, m *irc.Message) {
	d.status(s, "You've been invited by %s%s%s to %s%s%s", bold, m.Source.Nick, bold, bold, m.Params.Get(2), bold)
}

// onPrivmsg: ":nick!user@host PRIVMSG target :text"
//
// Messages to our nick are direct messages and open a private buffer named after the sender.
// Everything else is channel traffic.
func (d *Dispatcher) onPrivmsg(s Session, m *irc.Message) {
	if len(m.Params) < 2 {
		d.dump(s, m)
		return
	}
	target := m.Params.Get(1)
	text := m.Params.Get(2)
	nick := sourceName(m.Source)
	direct := s.IsMe(target)

	c, isCTCP := irc.ParseCTCP(text)
	if isCTCP && !c.IsAction() {
		d.onCTCP(s, m, c)
		return
	}

	var id registry.BufferID
	if direct {
		id = d.reg.Create(s.ID(), nick)
	} else {
		id = d.reg.Create(s.ID(), target)
	}

	if isCTCP {
		text = c.Text
		d.render(id, " %s* %s%s %s", bold, nick, bold, text)
	} else {
		rank := registry.RankNone
		if !direct {
			var known bool
			if rank, known = d.reg.Rank(id, nick); !known {
				d.reg.AddNick(id, nick, registry.RankNone)
			}
		}
		if rank != registry.RankNone {
			d.render(id, "<%s%s%s%s> %s", bold, rank, bold, nick, text)
		} else {
			d.render(id, "<%s> %s", nick, text)
		}
	}

	d.reg.MarkActivity(id, registry.ActivityMessage)
	if direct || containsFold(text, s.Nick()) {
		d.reg.MarkActivity(id, registry.ActivityHighlight)
	}
}

// onCTCP renders a CTCP query and answers VERSION.
func (d *Dispatcher) onCTCP(s Session, m *irc.Message, c irc.CTCPMessage) {
	nick := sourceName(m.Source)
	id := d.reg.Resolve(s.ID(), nick)
	d.serverLine(s, id, "%s%s%s (%s) CTCP request: %s%s%s", bold, nick, bold, m.Source.Address(), bold, c.Command, bold)

	if !strings.EqualFold(c.Command, "VERSION") {
		return
	}
	if !s.AllowCTCPReply() {
		d.logger.Debug("ctcp reply rate limited", zap.String("server", s.Name()), zap.String("nick", nick))
		return
	}
	d.send(s, irc.CTCPReply(nick, "VERSION", d.versionString()))
}

func (d *Dispatcher) versionString() string {
	return fmt.Sprintf("ircterm %s - on %s %s", d.version, runtime.GOOS, runtime.GOARCH)
}

// onNotice: ":nick!user@host NOTICE target :text"
//
// Notices never open buffers. They go to the channel or private buffer when one exists,
// and to the status buffer otherwise.
func (d *Dispatcher) onNotice(s Session, m *irc.Message) {
	if len(m.Params) < 2 {
		d.dump(s, m)
		return
	}
	target := m.Params.Get(1)
	text := m.Params.Get(2)
	nick := m.Source.Nick.String()

	id := registry.StatusBuffer
	if irc.IsChannel(target) {
		id = d.reg.Resolve(s.ID(), target)
	} else if nick != "" {
		id = d.reg.Resolve(s.ID(), nick)
	}

	switch c, ok := irc.ParseCTCP(text); {
	case ok:
		d.serverLine(s, id, "CTCP reply from %s%s%s: %s", bold, nick, bold, c.Raw)
	case nick == "":
		d.serverLine(s, id, "-%s- %s", m.Source.Host, text)
	default:
		d.serverLine(s, id, "-%s (%s)- %s", nick, m.Source.Address(), text)
	}
	d.reg.MarkActivity(id, registry.ActivityMessage)
}

// sourceName is the nickname of a prefix, or the server name for server prefixes.
func sourceName(p irc.Prefix) string {
	if p.Nick != "" {
		return p.Nick.String()
	}
	return p.Host
}

func containsFold(s, sub string) bool {
	return sub != "" && strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
