package irctest

import (
	"github.com/Travis-Britz/ircterm/irc"
)

// ServerName is the source of every server-originated line.
const ServerName = "irc.test"

// Network answers the minimum a client needs to register and chat:
// registration is welcomed with 001 and an empty MOTD, PINGs are answered,
// and JOIN and PART are echoed with a NAMES reply listing the client alone.
var Network = HandlerFunc(func(c *Conn, m *irc.Message) {
	nick := c.Nick()
	switch m.Command {
	case irc.CmdUser:
		c.Printf(":%s 001 %s :Welcome to the test network %s", ServerName, nick, nick)
		c.Printf(":%s 375 %s :- %s Message of the day -", ServerName, nick, ServerName)
		c.Printf(":%s 372 %s :- be nice", ServerName, nick)
		c.Printf(":%s 376 %s :End of MOTD command", ServerName, nick)
	case irc.CmdPing:
		c.WriteMessage(irc.Pong(m.Params.Get(1)))
	case irc.CmdJoin:
		ch := m.Params.Get(1)
		c.Printf(":%s!user@test JOIN %s", nick, ch)
		c.Printf(":%s 353 %s = %s :%s", ServerName, nick, ch, nick)
		c.Printf(":%s 366 %s %s :End of NAMES list", ServerName, nick, ch)
	case irc.CmdPart:
		c.Printf(":%s!user@test PART %s", nick, m.Params.Get(1))
	case irc.CmdQuit:
		c.Printf("ERROR :Closing link (%s)", m.Params.Get(1))
		c.Close()
	}
})
