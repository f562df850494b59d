// Package ui is the terminal front-end. It consumes the session API only:
// every frame asks the data plane for a page of rows and renders it, so the
// UI thread never blocks on ingestion or matching.
package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/pkg/errors"

	"github.com/Avarel/bvr/pkg/config"
	"github.com/Avarel/bvr/pkg/match"
	"github.com/Avarel/bvr/pkg/session"
)

type promptKind int

const (
	promptNone promptKind = iota
	promptSearch
	promptFilter
	promptGoto
)

type tickMsg time.Time

const frameInterval = 100 * time.Millisecond

// Model is the root bubbletea state of the viewer.
type Model struct {
	sess   *session.Session
	styles styles
	keys   keyMap

	width  int
	height int
	ready  bool

	top    int // filtered index of the first visible row
	sel    int // filtered index of the selected row
	pan    int // horizontal pan in cells
	follow bool

	prompt promptKind
	input  textinput.Model
	errMsg string
}

// New builds the viewer model for an open session.
func New(sess *session.Session, cfg config.Config) *Model {
	in := textinput.New()
	in.CharLimit = 512
	return &Model{
		sess:   sess,
		styles: newStyles(cfg.Theme),
		keys:   defaultKeyMap(),
		follow: cfg.Follow,
		input:  in,
	}
}

// Run drives the program until quit.
func Run(sess *session.Session, cfg config.Config) error {
	p := tea.NewProgram(New(sess, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return errors.Wrap(err, "terminal ui")
}

func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		return m, nil
	case tickMsg:
		if m.follow {
			m.top = m.sess.FollowTop(m.pageSize())
			m.sel = m.top + m.pageSize() - 1
		}
		m.clip()
		return m, tick()
	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		return m.updateView(msg)
	}
	return m, nil
}

func (m *Model) updateView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	page := m.pageSize()
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Up):
		m.moveSel(-1)
	case key.Matches(msg, k.Down):
		m.moveSel(1)
	case key.Matches(msg, k.PageUp):
		m.moveSel(-page)
	case key.Matches(msg, k.PageDown):
		m.moveSel(page)
	case key.Matches(msg, k.HalfUp):
		m.moveSel(-page / 2)
	case key.Matches(msg, k.HalfDown):
		m.moveSel(page / 2)
	case key.Matches(msg, k.Top):
		m.follow = false
		m.top, m.sel = 0, 0
	case key.Matches(msg, k.Bottom):
		n := m.sess.FilteredLen()
		m.sel = max(0, n-1)
		m.top = max(0, n-page)
	case key.Matches(msg, k.PanLeft):
		m.pan = max(0, m.pan-8)
	case key.Matches(msg, k.PanRight):
		m.pan += 8
	case key.Matches(msg, k.Search):
		return m.openPrompt(promptSearch, "/")
	case key.Matches(msg, k.Filter):
		return m.openPrompt(promptFilter, "&")
	case key.Matches(msg, k.Goto):
		return m.openPrompt(promptGoto, ":")
	case key.Matches(msg, k.NextMatch):
		if ln, ok := m.sess.NextMatch(m.selectedLine()); ok {
			m.gotoRank(m.sess.RankOf(ln))
		}
	case key.Matches(msg, k.PrevMatch):
		if ln, ok := m.sess.PrevMatch(m.selectedLine()); ok {
			m.gotoRank(m.sess.RankOf(ln))
		}
	case key.Matches(msg, k.Bookmark):
		m.sess.ToggleBookmark(m.selectedLine())
	case key.Matches(msg, k.Bookmarks):
		m.sess.EnableBookmarks(!m.sess.BookmarksEnabled())
	case key.Matches(msg, k.Follow):
		m.follow = !m.follow
	case key.Matches(msg, k.CycleMode):
		if m.sess.Mode() == match.Union {
			m.sess.SetMode(match.Intersect)
		} else {
			m.sess.SetMode(match.Union)
		}
	case key.Matches(msg, k.ClearAll):
		m.sess.ClearMatchers()
	case key.Matches(msg, k.ToggleChip):
		if i, err := strconv.Atoi(msg.String()); err == nil {
			if ms := m.sess.Matchers(); i >= 1 && i <= len(ms) {
				ms[i-1].SetEnabled(!ms[i-1].Enabled())
			}
		}
	case key.Matches(msg, k.Escape):
		m.errMsg = ""
	}
	return m, nil
}

func (m *Model) openPrompt(kind promptKind, prompt string) (tea.Model, tea.Cmd) {
	m.prompt = kind
	m.errMsg = ""
	m.input.Prompt = prompt
	m.input.SetValue("")
	m.input.Focus()
	return m, textinput.Blink
}

func (m *Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.prompt = promptNone
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		value := m.input.Value()
		kind := m.prompt
		m.prompt = promptNone
		m.input.Blur()
		m.commitPrompt(kind, value)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) commitPrompt(kind promptKind, value string) {
	if value == "" {
		return
	}
	switch kind {
	case promptSearch:
		if _, err := m.sess.AddRegex(value); err != nil {
			m.errMsg = fmt.Sprintf("bad pattern: %s", value)
		}
	case promptFilter:
		m.sess.AddLiteral(value)
	case promptGoto:
		n, err := strconv.Atoi(value)
		if err != nil {
			m.errMsg = "not a line number"
			return
		}
		m.follow = false
		m.gotoRank(m.sess.NearestFiltered(n - 1))
	}
}

func (m *Model) moveSel(delta int) {
	m.follow = false
	m.sel += delta
	m.clip()
}

func (m *Model) gotoRank(rank int) {
	m.sel = rank
	m.clip()
}

// clip keeps sel inside the filtered sequence and top inside the page.
func (m *Model) clip() {
	n := m.sess.FilteredLen()
	page := m.pageSize()
	m.sel = clampInt(m.sel, 0, max(0, n-1))
	if m.sel < m.top {
		m.top = m.sel
	}
	if m.sel >= m.top+page {
		m.top = m.sel - page + 1
	}
	m.top = clampInt(m.top, 0, max(0, n-page))
}

func (m *Model) pageSize() int {
	return max(1, m.height-2)
}

func (m *Model) selectedLine() int {
	if ln, ok := m.sess.Composite().Nth(m.sel); ok {
		return ln
	}
	return 0
}

func (m *Model) View() string {
	if !m.ready {
		return "loading…"
	}
	page := m.pageSize()
	rows := m.sess.View(m.top, page)

	gutter := len(strconv.Itoa(m.sess.LineCount() + 1))
	var b strings.Builder
	for i := 0; i < page; i++ {
		if i < len(rows) {
			b.WriteString(m.renderRow(rows[i], m.top+i == m.sel, gutter))
		} else {
			b.WriteString(m.styles.lineNo.Render("~"))
		}
		b.WriteByte('\n')
	}
	b.WriteString(m.statusLine())
	b.WriteByte('\n')
	b.WriteString(m.commandLine())
	return b.String()
}

func (m *Model) renderRow(r session.Row, selected bool, gutter int) string {
	mark := " "
	if r.Bookmarked {
		mark = m.styles.bookmark.Render("☆")
	}
	no := m.styles.lineNo.Render(fmt.Sprintf("%*d", gutter, r.Line+1))

	avail := max(1, m.width-gutter-2)
	text := r.Text
	if m.pan > 0 {
		text = runewidth.TruncateLeft(text, m.pan, "")
	}
	text = runewidth.Truncate(text, avail, "")
	if selected {
		text = m.styles.selected.Render(text)
	}
	return no + mark + text
}

func (m *Model) commandLine() string {
	if m.prompt != promptNone {
		return m.styles.prompt.Render(m.input.View())
	}
	if m.errMsg != "" {
		return m.styles.errText.Render(m.errMsg)
	}
	return m.styles.lineNo.Render("/ regex  & literal  : goto  b mark  f follow  m mode  q quit")
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
