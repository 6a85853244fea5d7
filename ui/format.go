package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Travis-Britz/ircterm/registry"
)

// IRC text formatting codes.
const (
	codeBold  = '\x02'
	codeColor = '\x03'
	codeReset = '\x0f'
)

var (
	boldStyle      = lipgloss.NewStyle().Bold(true)
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FDE68A"))
	topicStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB")).Background(lipgloss.Color("#1F2937"))
	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).Background(lipgloss.Color("#1F2937"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5EEAD4")).Bold(true)
	activityStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

// formatIRC renders bold spans and strips the other formatting codes.
// Colors are dropped along with their "fg,bg" digits.
func formatIRC(text string) string {
	var b, span strings.Builder
	bold := false
	flush := func() {
		if span.Len() == 0 {
			return
		}
		if bold {
			b.WriteString(boldStyle.Render(span.String()))
		} else {
			b.WriteString(span.String())
		}
		span.Reset()
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case codeBold:
			flush()
			bold = !bold
		case codeReset:
			flush()
			bold = false
		case codeColor:
			i += colorDigits(text[i+1:])
		default:
			span.WriteByte(text[i])
		}
	}
	flush()
	return b.String()
}

// colorDigits returns the length of a color argument such as "4" or "04,12".
func colorDigits(s string) int {
	n := digits(s, 2)
	if n > 0 && n < len(s) && s[n] == ',' {
		if m := digits(s[n+1:], 2); m > 0 {
			return n + 1 + m
		}
	}
	return n
}

func digits(s string, limit int) int {
	n := 0
	for n < len(s) && n < limit && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

// bufferBar lists the open buffers, marking the selected one and those with activity,
// truncated to width cells.
func bufferBar(snap registry.Snapshot, width int) string {
	var parts []string
	for _, b := range snap.Buffers {
		label := "[" + strconv.Itoa(int(b.ID)) + ":" + b.Name + "]"
		switch {
		case b.ID == snap.Selected:
			label = selectedStyle.Render(label)
		case b.Activity&registry.ActivityHighlight != 0:
			label = highlightStyle.Render(label)
		case b.Activity&registry.ActivityMessage != 0:
			label = activityStyle.Render(label)
		}
		parts = append(parts, label)
	}
	return truncate(strings.Join(parts, " "), width)
}

// truncate cuts plain text to width cells. Styled text is left to lipgloss.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return runewidth.Truncate(stripANSI(s), width, "…")
}

func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
