package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Travis-Britz/ircterm/irc"
	"github.com/Travis-Britz/ircterm/registry"
	"github.com/Travis-Britz/ircterm/session"
)

// DefaultBacklog is the number of lines /backlog replays without an argument.
const DefaultBacklog = 50

var errNoTarget = errors.New("this buffer is not a channel or query; use /msg")

func builtins() []*Command {
	return []*Command{
		{Name: "away", Usage: "[message]", Help: "Mark yourself away, or back with no message", Run: away},
		{Name: "backlog", Usage: "[count]", Help: "Replay stored lines into this buffer", Run: backlog},
		{Name: "buffer", Usage: "<number|name>", Help: "Switch to a buffer", Run: buffer},
		{Name: "buffer_list", Help: "List open buffers", Run: bufferList},
		{Name: "buffer_next", Help: "Switch to the next buffer", Run: bufferStep(1)},
		{Name: "buffer_prev", Help: "Switch to the previous buffer", Run: bufferStep(-1)},
		{Name: "close", Help: "Close this buffer, leaving the channel", Run: closeBuffer},
		{Name: "connect", Usage: "<server|address> [port] [nick]", Help: "Connect to a server", Run: connect},
		{Name: "server", Usage: "<server|address> [port] [nick]", Help: "Connect to a server", Run: connect},
		{Name: "ctcp", Usage: "<target> <command> [args]", Help: "Send a CTCP query", Run: ctcp},
		{Name: "disconnect", Usage: "[reason]", Help: "Disconnect from the server", Run: disconnect},
		{Name: "invite", Usage: "<nick> [channel]", Help: "Invite someone to a channel", Run: invite},
		{Name: "join", Usage: "<channel> [key]", Help: "Join a channel", Run: join},
		{Name: "kick", Usage: "[channel] <nick> [reason]", Help: "Kick someone from a channel", Run: kick},
		{Name: "me", Usage: "<action>", Help: "Send an action", Run: me},
		{Name: "mode", Usage: "[target] <modes> [args]", Help: "Change or query modes", Run: mode},
		{Name: "msg", Usage: "<target> <text>", Help: "Send a message", Run: msg},
		{Name: "names", Usage: "[channel]", Help: "List the users of a channel", Run: names},
		{Name: "notice", Usage: "<target> <text>", Help: "Send a notice", Run: notice},
		{Name: "nick", Usage: "<nick>", Help: "Change your nickname", Run: nick},
		{Name: "part", Usage: "[channel] [reason]", Help: "Leave a channel", Run: part},
		{Name: "query", Usage: "<nick> [text]", Help: "Open a private conversation", Run: query},
		{Name: "quit", Usage: "[reason]", Help: "Disconnect from every server and exit", Run: quit},
		{Name: "raw", Usage: "<line>", Help: "Send a line to the server as-is", Run: raw},
		{Name: "reconnect", Help: "Reconnect to the server", Run: reconnect},
		{Name: "say", Usage: "<text>", Help: "Send text to this buffer", Run: say},
		{Name: "serv", Usage: "[server]", Help: "Select the server used from the status buffer", Run: serv},
		{Name: "topic", Usage: "[channel] [topic]", Help: "Show or set a channel topic", Run: topic},
		{Name: "umode", Usage: "<modes>", Help: "Change your user mode", Run: umode},
		{Name: "whois", Usage: "<nick>", Help: "Show information about a user", Run: whois},
	}
}

func (t *Table) registerHelp() {
	t.Register(&Command{Name: "help", Usage: "[command]", Help: "List commands, or show help for one", Run: t.help})
}

func (t *Table) help(c *Context, args string) error {
	if args != "" {
		cmd, ok := t.Lookup(strings.TrimPrefix(args, "/"))
		if !ok {
			c.Print("Unknown command: /%s", args)
			return nil
		}
		c.Print("/%s %s", cmd.Name, cmd.Usage)
		c.Print("  %s", cmd.Help)
		return nil
	}
	c.Print("Commands: %s", strings.Join(t.Names(), " "))
	return nil
}

func away(c *Context, args string) error {
	return c.send(irc.Away(args))
}

func backlog(c *Context, args string) error {
	n := DefaultBacklog
	if args != "" {
		var err error
		if n, err = strconv.Atoi(args); err != nil || n < 1 {
			return errUsage
		}
	}
	return c.App.Backlog(c.Buffer, n)
}

func buffer(c *Context, args string) error {
	if args == "" {
		return errUsage
	}
	reg := c.App.Registry()
	if n, err := strconv.Atoi(args); err == nil {
		return reg.Select(registry.BufferID(n))
	}
	if c.Session != nil {
		if b, ok := reg.Lookup(c.Session.ID(), args); ok {
			return reg.Select(b.ID)
		}
	}
	for _, b := range reg.Buffers() {
		if strings.EqualFold(b.Name, args) {
			return reg.Select(b.ID)
		}
	}
	return fmt.Errorf("%s: %w", args, registry.ErrNoSuchBuffer)
}

func bufferList(c *Context, _ string) error {
	c.Print("Buffers:")
	for _, b := range c.App.Registry().Buffers() {
		server := ""
		if s, ok := c.App.Session(b.Session); ok {
			server = " (" + s.Name() + ")"
		}
		c.Print("  [%d] %s%s", b.ID, b.Name, server)
	}
	return nil
}

func bufferStep(delta int) func(*Context, string) error {
	return func(c *Context, _ string) error {
		reg := c.App.Registry()
		if delta > 0 {
			reg.Next()
		} else {
			reg.Prev()
		}
		return nil
	}
}

// closeBuffer leaves the channel when connected, then closes the buffer without waiting for the server.
func closeBuffer(c *Context, _ string) error {
	if c.Buffer == registry.StatusBuffer {
		return registry.ErrStatusBuffer
	}
	if ch, err := c.channel(); err == nil && c.Session != nil && c.Session.State() != session.StateDisconnected {
		if err := c.send(irc.Part(ch)); err != nil {
			return err
		}
	}
	return c.App.Registry().Close(c.Buffer)
}

// connect connects a configured server by name, or adds a new one by address.
func connect(c *Context, args string) error {
	f := fields(args, 3)
	if len(f) == 0 {
		return errUsage
	}
	if s, ok := c.App.SessionByName(f[0]); ok && len(f) == 1 {
		c.App.SetCurrent(s)
		return c.App.Connect(s)
	}

	cfg := session.Config{Host: f[0]}
	if host, port, ok := strings.Cut(f[0], ":"); ok {
		cfg.Host = host
		f = append([]string{host, port}, f[1:]...)
	}
	if len(f) > 1 {
		p, err := strconv.Atoi(f[1])
		if err != nil || p < 1 || p > 65535 {
			return errUsage
		}
		cfg.Port = p
	}
	switch {
	case len(f) > 2:
		cfg.Nick = f[2]
	case c.Session != nil:
		cfg.Nick = c.Session.Nick()
	}
	if cfg.Nick == "" {
		return errUsage
	}
	s := c.App.AddServer(cfg)
	c.App.SetCurrent(s)
	return c.App.Connect(s)
}

func ctcp(c *Context, args string) error {
	f := fields(args, 3)
	if len(f) < 2 {
		return errUsage
	}
	text := ""
	if len(f) == 3 {
		text = f[2]
	}
	return c.send(irc.CTCP(f[0], strings.ToUpper(f[1]), text))
}

func disconnect(c *Context, args string) error {
	s, err := c.connected()
	if err != nil {
		return err
	}
	c.App.Disconnect(s, args)
	return nil
}

func invite(c *Context, args string) error {
	f := fields(args, 2)
	if len(f) == 0 {
		return errUsage
	}
	if len(f) == 2 {
		return c.send(irc.Invite(f[0], f[1]))
	}
	ch, err := c.channel()
	if err != nil {
		return err
	}
	return c.send(irc.Invite(f[0], ch))
}

func join(c *Context, args string) error {
	f := fields(args, 2)
	if len(f) == 0 {
		return errUsage
	}
	ch := f[0]
	if !irc.IsChannel(ch) {
		ch = "#" + ch
	}
	if len(f) == 2 {
		return c.send(irc.JoinWithKey(ch, f[1]))
	}
	return c.send(irc.Join(ch))
}

func kick(c *Context, args string) error {
	f := fields(args, 3)
	if len(f) > 0 && irc.IsChannel(f[0]) {
		if len(f) < 2 {
			return errUsage
		}
		if len(f) == 3 {
			return c.send(irc.KickWithReason(f[0], f[1], f[2]))
		}
		return c.send(irc.Kick(f[0], f[1]))
	}

	f = fields(args, 2)
	if len(f) == 0 {
		return errUsage
	}
	ch, err := c.channel()
	if err != nil {
		return err
	}
	if len(f) == 2 {
		return c.send(irc.KickWithReason(ch, f[0], f[1]))
	}
	return c.send(irc.Kick(ch, f[0]))
}

func me(c *Context, args string) error {
	if args == "" {
		return errUsage
	}
	if c.Target == "" {
		return errNoTarget
	}
	if err := c.send(irc.Describe(c.Target, args)); err != nil {
		return err
	}
	c.Print(" %s* %s%s %s", bold, c.Session.Nick(), bold, args)
	return nil
}

// mode sends a MODE change. Without an explicit target, modes apply to the selected channel.
func mode(c *Context, args string) error {
	f := strings.Fields(args)
	if len(f) == 0 {
		ch, err := c.channel()
		if err != nil {
			return errUsage
		}
		return c.send(irc.ModeQuery(ch))
	}
	if f[0][0] == '+' || f[0][0] == '-' {
		ch, err := c.channel()
		if err != nil {
			return err
		}
		return c.send(irc.Mode(ch, f...))
	}
	if len(f) == 1 {
		return c.send(irc.ModeQuery(f[0]))
	}
	return c.send(irc.Mode(f[0], f[1:]...))
}

func msg(c *Context, args string) error {
	f := fields(args, 2)
	if len(f) < 2 {
		return errUsage
	}
	return message(c, f[0], f[1])
}

// message sends text to target and echoes it,
// in the target's buffer when one is open and in the selected buffer otherwise.
func message(c *Context, target, text string) error {
	if err := c.send(irc.Msg(target, text)); err != nil {
		return err
	}
	reg := c.App.Registry()
	nick := c.Session.Nick()
	b, ok := reg.Lookup(c.Session.ID(), target)
	if !ok {
		c.Print("-> *%s* %s", target, text)
		return nil
	}
	if rank, _ := reg.Rank(b.ID, nick); rank != registry.RankNone {
		c.App.Print(b.ID, fmt.Sprintf("<%s%s%s%s> %s", bold, rank, bold, nick, text))
		return nil
	}
	c.App.Print(b.ID, fmt.Sprintf("<%s> %s", nick, text))
	return nil
}

func notice(c *Context, args string) error {
	f := fields(args, 2)
	if len(f) < 2 {
		return errUsage
	}
	if err := c.send(irc.Notice(f[0], f[1])); err != nil {
		return err
	}
	c.Print("-> -%s- %s", f[0], f[1])
	return nil
}

func names(c *Context, args string) error {
	if args != "" {
		return c.send(irc.Names(args))
	}
	ch, err := c.channel()
	if err != nil {
		return err
	}
	return c.send(irc.Names(ch))
}

func nick(c *Context, args string) error {
	if args == "" || strings.Contains(args, " ") {
		return errUsage
	}
	return c.send(irc.Nick(args))
}

func part(c *Context, args string) error {
	f := fields(args, 2)
	ch := ""
	if len(f) > 0 && irc.IsChannel(f[0]) {
		ch = f[0]
		f = f[1:]
	} else {
		var err error
		if ch, err = c.channel(); err != nil {
			return err
		}
		f = fields(args, 1)
	}
	if len(f) > 0 {
		return c.send(irc.PartWithReason(ch, f[0]))
	}
	return c.send(irc.Part(ch))
}

func query(c *Context, args string) error {
	f := fields(args, 2)
	if len(f) == 0 || irc.IsChannel(f[0]) {
		return errUsage
	}
	if c.Session == nil {
		return ErrNoSession
	}
	reg := c.App.Registry()
	id := reg.Create(c.Session.ID(), f[0])
	if err := reg.Select(id); err != nil {
		return err
	}
	if len(f) == 2 {
		c.Buffer = id
		return message(c, f[0], f[1])
	}
	return nil
}

func quit(c *Context, args string) error {
	c.App.Quit(args)
	return nil
}

func raw(c *Context, args string) error {
	if args == "" {
		return errUsage
	}
	return c.send(irc.Raw(args))
}

func reconnect(c *Context, _ string) error {
	if c.Session == nil {
		return ErrNoSession
	}
	return c.App.Connect(c.Session)
}

func say(c *Context, args string) error {
	if args == "" {
		return errUsage
	}
	if c.Target == "" {
		return errNoTarget
	}
	return message(c, c.Target, args)
}

func serv(c *Context, args string) error {
	if args == "" {
		if c.Session == nil {
			return ErrNoSession
		}
		c.Print("Current server: %s%s%s (%s)", bold, c.Session.Name(), bold, c.Session.State())
		return nil
	}
	s, ok := c.App.SessionByName(args)
	if !ok {
		return fmt.Errorf("no server named %q", args)
	}
	c.App.SetCurrent(s)
	c.Print("Current server: %s%s%s", bold, s.Name(), bold)
	return nil
}

func topic(c *Context, args string) error {
	f := fields(args, 2)
	ch := ""
	if len(f) > 0 && irc.IsChannel(f[0]) {
		ch = f[0]
		f = f[1:]
	} else {
		var err error
		if ch, err = c.channel(); err != nil {
			return err
		}
		f = fields(args, 1)
	}
	if len(f) == 0 {
		return c.send(irc.TopicQuery(ch))
	}
	return c.send(irc.Topic(ch, f[0]))
}

func umode(c *Context, args string) error {
	if args == "" {
		return errUsage
	}
	s, err := c.connected()
	if err != nil {
		return err
	}
	return c.send(irc.Mode(s.Nick(), strings.Fields(args)...))
}

func whois(c *Context, args string) error {
	if args == "" {
		return errUsage
	}
	return c.send(irc.Whois(args))
}
