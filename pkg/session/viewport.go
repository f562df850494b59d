package session

import (
	"strings"

	"github.com/Avarel/bvr/pkg/match"
	"github.com/Avarel/bvr/pkg/segbuf"
	"github.com/pkg/errors"
)

// Row is one rendered viewport line.
type Row struct {
	// Line is the absolute line number in the buffer.
	Line int
	// Text is the line content without its terminator, lossily decoded.
	Text string
	// Bookmarked reports membership in the bookmark set at render time.
	Bookmarked bool
}

// View resolves up to height rows of the filtered sequence starting at
// filtered position topK. Rows past the end of the available data are
// simply absent; the caller retries on the next frame.
func (s *Session) View(topK, height int) []Row {
	comp := s.Composite()
	return s.render(comp, topK, height)
}

func (s *Session) render(comp match.Composite, topK, height int) []Row {
	lines := comp.Slice(topK, height)
	if len(lines) == 0 {
		return nil
	}
	idx := s.idx.Snapshot()
	rows := make([]Row, 0, len(lines))
	for _, ln := range lines {
		start, end, err := idx.LineRange(ln)
		if err != nil {
			break
		}
		v, err := s.store.Read(start, end)
		if err != nil {
			if !errors.Is(err, segbuf.ErrOutOfRange) {
				logger.Warnf("session %s: read line %d: %s", s.ID, ln, err)
			}
			break
		}
		rows = append(rows, Row{
			Line:       ln,
			Text:       viewText(&v),
			Bookmarked: s.bookmarks.Has(ln),
		})
		v.Release()
	}
	return rows
}

func viewText(v *segbuf.View) string {
	return lossy(match.TrimEOL(v.Bytes()))
}

func lossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// FollowTop returns the topK that anchors the bottom row to the latest
// filtered line, recomputed each frame in follow-tail mode.
func (s *Session) FollowTop(height int) int {
	n := s.Composite().Len()
	if n <= height {
		return 0
	}
	return n - height
}

// FilteredLen returns the current filtered row count.
func (s *Session) FilteredLen() int {
	return s.Composite().Len()
}

// NearestFiltered places a goto-line target inside the filtered sequence:
// the nearest lower member under Union, the nearest member at or above the
// target under Intersect.
func (s *Session) NearestFiltered(line int) int {
	comp := s.Composite()
	if s.Mode() == match.Intersect {
		return comp.RankCeil(line)
	}
	return comp.RankFloor(line)
}

// RankOf returns the lower-bound position of an absolute line in the
// filtered sequence.
func (s *Session) RankOf(line int) int {
	return s.Composite().Rank(line)
}

// NextMatch returns the first filtered line after the given one.
func (s *Session) NextMatch(after int) (int, bool) {
	return s.Composite().NextMatch(after)
}

// PrevMatch returns the last filtered line before the given one.
func (s *Session) PrevMatch(before int) (int, bool) {
	return s.Composite().PrevMatch(before)
}
