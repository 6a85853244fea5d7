// This lexer follows the method described in the video:
// Lexical Scanning in Go - Rob Pike
// https://www.youtube.com/watch?v=HxaD_trXwRE
//
// Unlike the talk, items are collected into a slice instead of a channel.
// Lines are short and decoding runs on the event loop, so there is no
// reason to pay for a goroutine per line.

package irc

import (
	"fmt"
	"strings"
)

const (
	delimParam    = ' ' // the delimiter token for parameters
	startPrefix   = ':' // the delimiter for the prefix
	startTrailing = ':' // the delimiter for the trailing param
)

// item represents a token returned from the scanner.
type item struct {
	typ itemType // Type, such as itemParam
	val string   // the value of the lexed token
}

func (it itemType) String() string {
	switch it {
	case itemCommand:
		return "Command"
	case itemNumeric:
		return "Numeric"
	case itemPrefix:
		return "Source"
	case itemParam:
		return "Param"
	case itemError:
		return "Error"
	default:
		return ""
	}
}

func (i item) String() string {
	switch {
	case i.typ == itemEOF:
		return "EOF"
	case i.typ == itemError:
		return i.val
	}

	return fmt.Sprintf("%s: %q", i.typ, i.val)
}

// itemType identifies the type of lex items.
type itemType int

const (
	itemError   itemType = iota // error occurred; value is text of error.
	itemPrefix                  // the prefix portion of a message, e.g. "nick!user@host"
	itemCommand                 // the command, e.g. "PRIVMSG"
	itemNumeric                 // the numeric reply code, e.g. "001"
	itemParam                   // a command parameter, e.g. the target and text of a PRIVMSG
	itemEOF                     // end of message
)

const eof = -1

// stateFn represents the state of the scanner as a function that returns the next state.
type stateFn func(*lexer) stateFn

// lexer holds the state of the scanner.
type lexer struct {
	input  string // the string being scanned.
	start  int    // start position of this item.
	pos    int    // current position in the input.
	params int    // number of params emitted so far.
	items  []item // scanned items
}

// lex scans input to completion.
func lex(input string) *lexer {
	l := &lexer{
		input: input,
		items: make([]item, 0, 4),
	}
	for state := lexStart; state != nil; {
		state = state(l)
	}
	return l
}

func (l *lexer) emit(t itemType) {
	l.items = append(l.items, item{t, l.input[l.start:l.pos]})
	l.start = l.pos
}

func (l *lexer) ignore() {
	l.start = l.pos
}

// ignoreSpaces skips a run of parameter delimiters.
// Servers are supposed to send exactly one, but some send more.
func (l *lexer) ignoreSpaces() {
	for l.peek() == delimParam {
		l.pos++
	}
	l.ignore()
}

// next returns the next byte in the input.
// The protocol delimiters are all single-byte ascii, so there is no need to decode runes.
func (l *lexer) next() int {
	if l.pos >= len(l.input) {
		return eof
	}
	b := l.input[l.pos]
	l.pos++
	return int(b)
}

// peek returns but does not consume the next byte in the input.
func (l *lexer) peek() int {
	if l.pos >= len(l.input) {
		return eof
	}
	return int(l.input[l.pos])
}

// errorf records an error token and terminates the scan by passing
// back a nil pointer that will be the next state.
func (l *lexer) errorf(format string, args ...interface{}) stateFn {
	l.items = append(l.items, item{itemError, fmt.Sprintf(format, args...)})
	return nil
}

// scanToken advances until the next delimiter or the end of input.
func (l *lexer) scanToken() {
	if i := strings.IndexByte(l.input[l.pos:], delimParam); i >= 0 {
		l.pos += i
		return
	}
	l.pos = len(l.input)
}

func lexStart(l *lexer) stateFn {
	if l.peek() == eof {
		return l.errorf("empty line")
	}
	if l.peek() == startPrefix {
		return lexPrefix
	}
	return lexVerb
}

// lexPrefix scans the prefix. The leading ':' is known to be present.
func lexPrefix(l *lexer) stateFn {
	l.pos++
	l.ignore()
	l.scanToken()
	if l.peek() == eof {
		return l.errorf("unexpected end of input; expected command after prefix")
	}
	l.emit(itemPrefix)
	l.ignoreSpaces()
	return lexVerb
}

// lexVerb scans a numeric reply code or a command name.
// Three digits followed by a delimiter or the end of input is a numeric,
// anything else is a command token.
func lexVerb(l *lexer) stateFn {
	rest := l.input[l.pos:]
	if isNumeric(rest) {
		l.pos += 3
		l.emit(itemNumeric)
		l.ignoreSpaces()
		return lexParam
	}
	l.scanToken()
	if l.pos == l.start {
		return l.errorf("command is empty")
	}
	l.emit(itemCommand)
	l.ignoreSpaces()
	return lexParam
}

// isNumeric reports whether s starts with a non-zero three digit reply code.
//
// Numeric 0 means "not a numeric" in Message, so "000" is left to the
// command path and decodes as Command "000".
func isNumeric(s string) bool {
	if len(s) < 3 {
		return false
	}
	if len(s) > 3 && s[3] != delimParam {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s[:3] != "000"
}

func lexParam(l *lexer) stateFn {
	if l.peek() == eof || l.params == ParamLimit {
		l.emit(itemEOF)
		return nil
	}
	if l.peek() == startTrailing {
		return lexTrailing
	}
	l.scanToken()
	l.emit(itemParam)
	l.params++
	l.ignoreSpaces()
	return lexParam
}

// lexTrailing scans the trailing param, which runs to the end of the line
// and may contain spaces. The leading ':' is known to be present.
func lexTrailing(l *lexer) stateFn {
	l.pos++
	l.ignore()
	l.pos = len(l.input)
	l.emit(itemParam)
	l.params++
	l.emit(itemEOF)
	return nil
}
