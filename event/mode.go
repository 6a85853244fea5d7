package event

import (
	"strings"

	"github.com/Travis-Britz/ircterm/irc"
	"github.com/Travis-Britz/ircterm/registry"
)

// chanModes sorts channel mode letters by how they take parameters.
// CHANMODES=A,B,C,D
type chanModes struct {
	A string // list modes, always take a parameter
	B string // always take a parameter
	C string // take a parameter only when set
	D string // never take a parameter
}

// todo: fill from CHANMODES and PREFIX in RPL_ISUPPORT
var defaultChanModes = chanModes{
	A: "beI",
	B: "k",
	C: "l",
	D: "psitnm",
}

// prefixModes take a nick as their parameter.
// Only o, h and v are tracked as ranks; q and a are shown but change nothing.
const prefixModes = "qaohv"

func (cm chanModes) takesParam(mode byte, adding bool) bool {
	switch {
	case strings.IndexByte(prefixModes, mode) >= 0,
		strings.IndexByte(cm.A, mode) >= 0,
		strings.IndexByte(cm.B, mode) >= 0:
		return true
	case strings.IndexByte(cm.C, mode) >= 0:
		return adding
	default:
		return false
	}
}

func rankOf(mode byte) registry.Rank {
	switch mode {
	case 'o':
		return registry.RankOp
	case 'h':
		return registry.RankHalfOp
	case 'v':
		return registry.RankVoice
	default:
		return registry.RankNone
	}
}

// modeChange is a single letter of a mode string with its parameter, if any.
type modeChange struct {
	adding bool
	mode   byte
	param  string
}

// parseModes splits "+ov-h", "a", "b", "c" into one change per letter,
// consuming a parameter for each letter that takes one.
func (cm chanModes) parseModes(modes string, params []string) []modeChange {
	var changes []modeChange
	adding := true
	for i := 0; i < len(modes); i++ {
		switch c := modes[i]; c {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			mc := modeChange{adding: adding, mode: c}
			if cm.takesParam(c, adding) && len(params) > 0 {
				mc.param, params = params[0], params[1:]
			}
			changes = append(changes, mc)
		}
	}
	return changes
}

// onMode handles user and channel mode changes.
//
//	":nick!user@host MODE #chan +ov alice bob"
//	":nick MODE nick :+i"
func (d *Dispatcher) onMode(s Session, m *irc.Message) {
	target := m.Params.Get(1)

	// user mode, either "MODE nick +i" or the rare single-param "MODE +i"
	if len(m.Params) == 1 || !irc.IsChannel(target) {
		modes := m.Params.Last()
		nick := target
		if len(m.Params) == 1 {
			nick = s.Nick()
		}
		if s.IsMe(nick) {
			s.SetMode(applyUserModes(s.Mode(), modes))
		}
		d.status(s, "User mode of %s%s%s : [%s]", bold, nick, bold, modes)
		return
	}

	id := d.reg.Resolve(s.ID(), target)
	for _, mc := range defaultChanModes.parseModes(m.Params.Get(2), m.Params[2:]) {
		rank := rankOf(mc.mode)
		if rank == registry.RankNone || mc.param == "" {
			continue
		}
		if mc.adding {
			d.reg.SetRank(id, mc.param, rank)
			continue
		}
		// removing voice from an op leaves the op alone
		if cur, ok := d.reg.Rank(id, mc.param); ok && cur == rank {
			d.reg.SetRank(id, mc.param, registry.RankNone)
		}
	}
	d.render(id, "  *** Mode %s%s%s [%s] set by %s%s%s", bold, target, bold, m.Params.From(2, " "), bold, sourceName(m.Source), bold)
}

// applyUserModes merges a change such as "+i-w" into a mode string such as "+iw".
func applyUserModes(current, change string) string {
	set := []byte(strings.TrimPrefix(current, "+"))
	adding := true
	for i := 0; i < len(change); i++ {
		switch c := change[i]; c {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			at := strings.IndexByte(string(set), c)
			switch {
			case adding && at < 0:
				set = append(set, c)
			case !adding && at >= 0:
				set = append(set[:at], set[at+1:]...)
			}
		}
	}
	if len(set) == 0 {
		return ""
	}
	return "+" + string(set)
}
