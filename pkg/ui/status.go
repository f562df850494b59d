package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/Avarel/bvr/pkg/ingest"
	"github.com/Avarel/bvr/pkg/match"
)

// statusLine renders the bottom status bar: buffer name, ingest state,
// counts, composition mode and one chip per installed matcher.
func (m *Model) statusLine() string {
	var b strings.Builder

	b.WriteString(m.styles.accent.Render(" " + m.sess.Name + " "))

	switch m.sess.State() {
	case ingest.Running:
		ingested, total := m.sess.Progress()
		if total > 0 {
			fmt.Fprintf(&b, " %3.0f%%", float64(ingested)/float64(total)*100)
		} else {
			fmt.Fprintf(&b, " %s", humanBytes(ingested))
		}
	case ingest.FailedIO:
		b.WriteString(m.styles.errText.Render(" io error"))
	case ingest.CompleteEOF:
		// steady state carries no marker
	}

	filtered := m.sess.FilteredLen()
	total := m.sess.LineCount()
	if filtered != total {
		fmt.Fprintf(&b, "  %d/%d lines", filtered, total)
		fmt.Fprintf(&b, " [%s]", m.sess.Mode())
	} else {
		fmt.Fprintf(&b, "  %d lines", total)
	}
	if m.follow {
		b.WriteString("  FOLLOW")
	}

	for i, mt := range m.sess.Matchers() {
		chip := fmt.Sprintf(" %d:%s(%d)", i+1, chipLabel(mt), mt.Count())
		if !mt.Complete() {
			chip += "…"
		}
		if mt.Enabled() {
			b.WriteString(m.styles.chip.Render(chip))
		} else {
			b.WriteString(m.styles.chipOff.Render(chip))
		}
	}
	if n := m.sess.Bookmarks().Count(); n > 0 {
		b.WriteString(m.styles.bookmark.Render(fmt.Sprintf(" ☆%d", n)))
	}

	line := b.String()
	return m.styles.status.Width(m.width).Render(runewidth.Truncate(line, m.width, "…"))
}

func chipLabel(mt *match.Matcher) string {
	return runewidth.Truncate(mt.Name(), 16, "…")
}

func humanBytes(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fGiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
