package event

import (
	"strconv"
	"strings"
	"time"

	"github.com/Travis-Britz/ircterm/irc"
	"github.com/Travis-Britz/ircterm/registry"
)

// onNumeric dispatches a numeric reply by family.
// The first parameter of every numeric is our own nick (or "*" before registration).
func (d *Dispatcher) onNumeric(s Session, m *irc.Message) {
	switch familyOf(m.Numeric) {
	case famInfo, famMOTDEnd:
		d.status(s, "%s", m.Params.From(2, " "))
	case famWhois:
		d.onWhois(s, m)
	case famAway:
		d.status(s, "%s", m.Params.Get(2))
	case famList:
		d.onList(s, m)
	case famTopic:
		d.onTopicReply(s, m)
	case famChannelInfo:
		d.onChannelInfo(s, m)
	case famNames:
		d.onNames(s, m)
	case famHost:
		d.status(s, "%s%s%s (%s) %s", bold, m.Params.Get(1), bold, m.Params.Get(2), m.Params.Get(3))
	case famError:
		d.onError(s, m)
	case famNickInUse:
		d.onNickInUse(s, m)
	case famNotRegistered:
		d.status(s, "You have not registered")
	case famNotOperator:
		ch := m.Params.Get(2)
		d.render(d.reg.Resolve(s.ID(), ch), "  *** <%s> You're not channel operator", ch)
	case famLinked:
		d.onLinked(s, m)
	default:
		d.dump(s, m)
	}
}

// onWhois renders WHOIS replies in the query buffer of the nick, if open.
func (d *Dispatcher) onWhois(s Session, m *irc.Message) {
	p := m.Params
	id := d.reg.Resolve(s.ID(), p.Get(2))
	switch m.Numeric {
	case irc.RplWhoIsCertFP, irc.RplWhoIsRegNick, irc.RplWhoIsOperator, irc.RplWhoIsSpecial,
		irc.RplWhoIsHost, irc.RplWhoIsSecure:
		d.serverLine(s, id, "          %s: %s", p.Get(2), p.Get(3))
	case irc.RplWhoIsUser:
		// "<nick> <user> <host> * :<real name>"
		d.serverLine(s, id, "%s%s%s (%s@%s)", bold, p.Get(2), bold, p.Get(3), p.Get(4))
		d.serverLine(s, id, "IRCNAME:  %s", p.Get(6))
	case irc.RplWhoIsServer:
		d.serverLine(s, id, "SERVER:   %s (%s)", p.Get(3), p.Get(4))
	case irc.RplAway:
		d.serverLine(s, id, "AWAY:     %s", p.Get(3))
	case irc.RplWhoIsIdle:
		d.serverLine(s, id, "IDLE:     seconds idle: %s signon time: %s", p.Get(3), formatTime(p.Get(4)))
	case irc.RplEndOfWhoIs:
		d.serverLine(s, id, "%s", p.Get(3))
	case irc.RplWhoIsChannels:
		d.serverLine(s, id, "CHANNELS: %s", p.Get(3))
	case irc.RplWhoIsAccount:
		// "<nick> <account> :is logged in as"
		d.serverLine(s, id, "          %s: %s %s", p.Get(2), p.Get(4), p.Get(3))
	}
}

func (d *Dispatcher) onList(s Session, m *irc.Message) {
	p := m.Params
	switch m.Numeric {
	case irc.RplListStart:
		d.status(s, "%s : %s", p.Get(2), p.Get(3))
	case irc.RplList:
		d.status(s, "%s   %s : %s", p.Get(2), p.Get(3), p.Get(4))
	case irc.RplListEnd:
		d.status(s, "%s", p.Get(2))
	}
}

// onTopicReply handles the topic sent on join or in reply to TOPIC #chan.
func (d *Dispatcher) onTopicReply(s Session, m *irc.Message) {
	p := m.Params
	ch := p.Get(2)
	id := d.reg.Resolve(s.ID(), ch)
	switch m.Numeric {
	case irc.RplTopic:
		d.reg.SetTopic(id, p.Get(3))
		d.render(id, "  *** Topic of %s%s%s: %s", bold, ch, bold, p.Get(3))
	case irc.RplNoTopic:
		d.reg.SetTopic(id, "")
		d.render(id, "  *** %s%s%s: %s", bold, ch, bold, p.Get(3))
	case irc.RplTopicWhoTime:
		// "<channel> <nick> <setat>"; some servers send the full address
		setter := irc.ParsePrefix(p.Get(3))
		d.render(id, "  *** Set by %s%s%s (%s)", bold, sourceName(setter), bold, formatTime(p.Get(4)))
	}
}

func (d *Dispatcher) onChannelInfo(s Session, m *irc.Message) {
	p := m.Params
	ch := p.Get(2)
	id := d.reg.Resolve(s.ID(), ch)
	switch m.Numeric {
	case irc.RplChannelURL:
		d.render(id, "  *** Home page of %s%s%s: %s", bold, ch, bold, p.Get(3))
	case irc.RplChannelModeIs:
		d.render(id, "  *** Mode of %s%s%s: [%s]", bold, ch, bold, p.From(3, " "))
	case irc.RplCreationTime:
		d.render(id, "  *** %s%s%s created %s", bold, ch, bold, formatTime(p.Get(3)))
	}
}

// onNames accumulates RPL_NAMREPLY lines and renders the sorted list at RPL_ENDOFNAMES.
//
//	":srv 353 me = #chan :@alice +bob carl"
//	":srv 366 me #chan :End of /NAMES list."
func (d *Dispatcher) onNames(s Session, m *irc.Message) {
	p := m.Params
	if m.Numeric == irc.RplNamReply {
		ch := p.Get(3)
		id := d.reg.Resolve(s.ID(), ch)
		if id == registry.StatusBuffer {
			// NAMES for a channel we're not in
			d.status(s, "%s%s%s: %s", bold, ch, bold, p.Get(4))
			return
		}
		d.reg.BeginNames(id)
		for _, entry := range strings.Fields(p.Get(4)) {
			rank, nick := registry.ParseRank(entry)
			d.reg.AddNick(id, nick, rank)
		}
		return
	}

	ch := p.Get(2)
	id := d.reg.Resolve(s.ID(), ch)
	if id == registry.StatusBuffer {
		d.status(s, "%s%s%s: %s", bold, ch, bold, p.Get(3))
		return
	}
	d.reg.EndNames(id)
	nicks := d.reg.Nicks(id)
	names := make([]string, len(nicks))
	for i, n := range nicks {
		if n.Rank != registry.RankNone {
			names[i] = bold + n.Rank.String() + bold + n.Name
		} else {
			names[i] = n.Name
		}
	}
	d.render(id, "  *** Users of %s%s%s: %d nick(s)", bold, ch, bold, len(nicks))
	d.render(id, "%s[%s", bold, bold)
	d.render(id, "  %s", strings.Join(names, " "))
	d.render(id, "%s]%s", bold, bold)
}

// onError renders an error reply next to whatever it is about.
//
//	":srv 401 me bob :No such nick/channel"
//	":srv 412 me :No text to send"
func (d *Dispatcher) onError(s Session, m *irc.Message) {
	p := m.Params
	if len(p) < 3 {
		d.status(s, "%s", p.Last())
		return
	}
	subject := p.Get(2)
	id := d.reg.Resolve(s.ID(), subject)

	switch m.Numeric {
	case irc.ErrNoSuchChannel, irc.ErrBadChanName:
		// the buffer can never become a real channel
		if id != registry.StatusBuffer {
			d.reg.Close(id)
			id = registry.StatusBuffer
		}
	}
	d.serverLine(s, id, "%s%s%s: %s", bold, subject, bold, p.Last())
}

// onNickInUse retries registration with an underscore appended,
// as long as the rejected nick is the one we're currently trying.
// A rejected /nick change leaves the current nick alone.
func (d *Dispatcher) onNickInUse(s Session, m *irc.Message) {
	rejected := m.Params.Get(2)
	d.status(s, "Nickname %s%s%s is already in use", bold, rejected, bold)
	if !s.IsMe(rejected) {
		return
	}
	nick, ok := s.RetryNick()
	if !ok {
		d.status(s, "Giving up on automatic nickname changes; use /nick to choose another")
		return
	}
	d.status(s, "Trying %s%s%s", bold, nick, bold)
	d.send(s, irc.Nick(nick))
}

// onLinked follows a channel forward: ":srv 470 me #old #new :Forwarding to another channel"
func (d *Dispatcher) onLinked(s Session, m *irc.Message) {
	from, to := m.Params.Get(2), m.Params.Get(3)
	d.status(s, "Channel %s%s%s linked on %s%s%s", bold, from, bold, bold, to, bold)
	if b, ok := d.reg.Lookup(s.ID(), from); ok {
		d.follow(s, b.ID, to)
	}
}

// formatTime renders a unix timestamp parameter, leaving anything else as it is.
func formatTime(ts string) string {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ts
	}
	return time.Unix(sec, 0).UTC().Format("2006-01-02 15:04:05 MST")
}
