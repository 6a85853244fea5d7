package ui

// ScrollbackLines is how many lines each buffer keeps on screen.
const ScrollbackLines = 512

// scrollback is a fixed-size ring of rendered lines.
type scrollback struct {
	lines []string
	start int // index of the oldest line once the ring is full
}

func (s *scrollback) add(line string) {
	if len(s.lines) < ScrollbackLines {
		s.lines = append(s.lines, line)
		return
	}
	s.lines[s.start] = line
	s.start = (s.start + 1) % ScrollbackLines
}

// all returns the lines oldest first.
func (s *scrollback) all() []string {
	out := make([]string, 0, len(s.lines))
	out = append(out, s.lines[s.start:]...)
	return append(out, s.lines[:s.start]...)
}

func (s *scrollback) len() int {
	return len(s.lines)
}
