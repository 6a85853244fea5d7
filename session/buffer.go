package session

import "bytes"

var crlf = []byte("\r\n")

// lineBuffer is a fixed-capacity byte buffer.
// Bytes are appended at the end and consumed from the front;
// the backing array never grows.
type lineBuffer struct {
	buf []byte
	n   int // bytes in use
}

func newLineBuffer(capacity int) *lineBuffer {
	return &lineBuffer{buf: make([]byte, capacity)}
}

// Len returns the number of buffered bytes.
func (b *lineBuffer) Len() int { return b.n }

// Free returns the number of bytes that can still be appended.
func (b *lineBuffer) Free() int { return len(b.buf) - b.n }

// Bytes returns the buffered bytes. The slice is only valid until the next mutation.
func (b *lineBuffer) Bytes() []byte { return b.buf[:b.n] }

// tail is the unused part of the backing array, for reading directly into.
func (b *lineBuffer) tail() []byte { return b.buf[b.n:] }

// commit marks n bytes of tail as used.
func (b *lineBuffer) commit(n int) { b.n += n }

// Append copies p into the buffer.
// It reports false, leaving the buffer unchanged, when p does not fit entirely.
func (b *lineBuffer) Append(p []byte) bool {
	if len(p) > b.Free() {
		return false
	}
	b.n += copy(b.buf[b.n:], p)
	return true
}

// Consume drops the first n bytes and shifts the remainder to the front.
func (b *lineBuffer) Consume(n int) {
	if n >= b.n {
		b.n = 0
		return
	}
	copy(b.buf, b.buf[n:b.n])
	b.n -= n
}

// Reset empties the buffer.
func (b *lineBuffer) Reset() { b.n = 0 }

// eachLine calls fn with every complete CRLF-terminated line, without the terminator,
// then consumes them. A trailing partial line stays buffered.
// Empty lines are skipped. Scanning stops early when fn returns false.
//
// line aliases the buffer and must not be retained by fn.
func (b *lineBuffer) eachLine(fn func(line []byte) bool) {
	data := b.Bytes()
	used := 0
	for {
		i := bytes.Index(data[used:], crlf)
		if i < 0 {
			break
		}
		line := data[used : used+i]
		used += i + len(crlf)
		if len(line) == 0 {
			continue
		}
		if !fn(line) {
			break
		}
	}
	b.Consume(used)
}
