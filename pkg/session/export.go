package session

// Exporter iterates the composite's lines as (line number, text) pairs. It
// captures the filtered sequence once at construction, so it yields exactly
// the rows that were caught up at iteration start and is safe to run while
// ingest continues. Reset restarts from the beginning of the same capture.
type Exporter struct {
	s     *Session
	lines []int
	pos   int
}

// Export creates an iterator over the current composite.
func (s *Session) Export() *Exporter {
	comp := s.Composite()
	return &Exporter{s: s, lines: comp.Slice(0, comp.Len())}
}

// Len returns the total number of rows the exporter will yield.
func (e *Exporter) Len() int { return len(e.lines) }

// Next yields the next row, or ok=false when the capture is exhausted.
func (e *Exporter) Next() (Row, bool) {
	idx := e.s.idx.Snapshot()
	for e.pos < len(e.lines) {
		ln := e.lines[e.pos]
		start, end, err := idx.LineRange(ln)
		if err != nil {
			// a member past the published index; nothing later can resolve
			e.pos = len(e.lines)
			return Row{}, false
		}
		v, err := e.s.store.Read(start, end)
		if err != nil {
			e.pos = len(e.lines)
			return Row{}, false
		}
		row := Row{Line: ln, Text: viewText(&v), Bookmarked: e.s.bookmarks.Has(ln)}
		v.Release()
		e.pos++
		return row, true
	}
	return Row{}, false
}

// Reset restarts iteration over the captured sequence.
func (e *Exporter) Reset() { e.pos = 0 }
