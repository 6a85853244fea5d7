package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectLines(b *lineBuffer) []string {
	var lines []string
	b.eachLine(func(line []byte) bool {
		lines = append(lines, string(line))
		return true
	})
	return lines
}

func TestLineBuffer_append(t *testing.T) {
	b := newLineBuffer(8)
	require.True(t, b.Append([]byte("abcde")))
	assert.Equal(t, 3, b.Free())

	// refused appends leave the buffer untouched
	assert.False(t, b.Append([]byte("fghi")))
	assert.Equal(t, "abcde", string(b.Bytes()))

	require.True(t, b.Append([]byte("fgh")))
	assert.Equal(t, 0, b.Free())
}

func TestLineBuffer_consumeShiftsRemainder(t *testing.T) {
	b := newLineBuffer(16)
	b.Append([]byte("NICK a\r\nJOIN #b"))
	b.Consume(8)
	assert.Equal(t, "JOIN #b", string(b.Bytes()))
	assert.Equal(t, 9, b.Free())

	b.Consume(100)
	assert.Equal(t, 0, b.Len())
}

func TestLineBuffer_eachLine(t *testing.T) {
	tt := []struct {
		name    string
		chunks  []string
		want    []string
		pending string
	}{
		{"single", []string{"PING :a\r\n"}, []string{"PING :a"}, ""},
		{"split terminator", []string{"PING :a\r", "\n"}, []string{"PING :a"}, ""},
		{"split line", []string{"PRIVMSG #c :hel", "lo\r\nPING"}, []string{"PRIVMSG #c :hello"}, "PING"},
		{"empty lines skipped", []string{"\r\n\r\nA\r\n\r\n"}, []string{"A"}, ""},
		{"bare LF is not a terminator", []string{"A\nB\r\n"}, []string{"A\nB"}, ""},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			b := newLineBuffer(64)
			var got []string
			for _, c := range tc.chunks {
				require.True(t, b.Append([]byte(c)))
				got = append(got, collectLines(b)...)
			}
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.pending, string(b.Bytes()))
		})
	}
}

func TestLineBuffer_eachLineStops(t *testing.T) {
	b := newLineBuffer(64)
	b.Append([]byte(strings.Repeat("X\r\n", 3)))

	calls := 0
	b.eachLine(func(line []byte) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, "X\r\nX\r\n", string(b.Bytes()))
}
