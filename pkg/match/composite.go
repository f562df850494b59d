package match

import "sort"

// Mode selects how child matchers compose.
type Mode int

const (
	// Union keeps lines matched by any enabled child.
	Union Mode = iota
	// Intersect keeps lines matched by every enabled child.
	Intersect
)

func (m Mode) String() string {
	if m == Intersect {
		return "intersect"
	}
	return "union"
}

// Composite is a point-in-time composition of enabled child sets. It is
// built per query from snapshots, holds no locks, and is cheap to discard.
// With no children the composite is transparent: every indexed line is a
// member, which keeps the "no filters" path free.
type Composite struct {
	mode      Mode
	members   [][]int
	lineCount int
}

// LineCounter supplies the current number of indexed lines, for the
// transparent case.
type LineCounter interface {
	LineCount() int
}

type fixedLines int

func (f fixedLines) LineCount() int { return int(f) }

// Lines is a fixed LineCounter, for compositions over a settled index.
func Lines(n int) LineCounter { return fixedLines(n) }

// Compose captures snapshots of the enabled sets. Disabled sets must be
// filtered by the caller. The member snapshots are taken before the line
// count is read (the reverse of the publication order) so every line the
// composite can yield is covered by the index it was composed against.
func Compose(mode Mode, lines LineCounter, sets ...Set) Composite {
	c := Composite{mode: mode}
	for _, s := range sets {
		c.members = append(c.members, s.Snapshot())
	}
	c.lineCount = lines.LineCount()
	return c
}

// Transparent reports whether the composite passes every line through.
func (c Composite) Transparent() bool { return len(c.members) == 0 }

// Len returns the filtered row count.
func (c Composite) Len() int {
	if c.Transparent() {
		return c.lineCount
	}
	return len(c.merge(-1))
}

// Nth returns the k-th smallest member line.
func (c Composite) Nth(k int) (int, bool) {
	if k < 0 {
		return 0, false
	}
	if c.Transparent() {
		if k >= c.lineCount {
			return 0, false
		}
		return k, true
	}
	m := c.merge(k + 1)
	if k >= len(m) {
		return 0, false
	}
	return m[k], true
}

// Slice returns members [start, start+count), clipped to the result.
func (c Composite) Slice(start, count int) []int {
	if start < 0 || count <= 0 {
		return nil
	}
	if c.Transparent() {
		if start >= c.lineCount {
			return nil
		}
		end := start + count
		if end > c.lineCount {
			end = c.lineCount
		}
		out := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			out = append(out, i)
		}
		return out
	}
	m := c.merge(start + count)
	if start >= len(m) {
		return nil
	}
	return m[start:min(len(m), start+count)]
}

// Rank returns the lower-bound position of line n in the filtered sequence:
// the count of members strictly below n. Rank(Nth(k)) == k.
func (c Composite) Rank(n int) int {
	if c.Transparent() {
		return clamp(n, 0, c.lineCount)
	}
	m := c.merge(-1)
	return sort.SearchInts(m, n)
}

// RankFloor returns the position of the nearest member <= n, or 0 when
// every member is above n.
func (c Composite) RankFloor(n int) int {
	if c.Transparent() {
		return clamp(n, 0, max(0, c.lineCount-1))
	}
	m := c.merge(-1)
	i := sort.SearchInts(m, n+1)
	if i == 0 {
		return 0
	}
	return i - 1
}

// RankCeil returns the position of the nearest member >= n, clamped to the
// last member.
func (c Composite) RankCeil(n int) int {
	if c.Transparent() {
		return clamp(n, 0, max(0, c.lineCount-1))
	}
	m := c.merge(-1)
	i := sort.SearchInts(m, n)
	if i >= len(m) {
		i = len(m) - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// NextMatch returns the smallest member line strictly after the given line.
func (c Composite) NextMatch(after int) (int, bool) {
	if c.Transparent() {
		if after+1 >= c.lineCount {
			return 0, false
		}
		return after + 1, true
	}
	if c.mode == Union {
		best, ok := 0, false
		for _, m := range c.members {
			if i := sort.SearchInts(m, after+1); i < len(m) {
				if !ok || m[i] < best {
					best, ok = m[i], true
				}
			}
		}
		return best, ok
	}
	m := c.merge(-1)
	if i := sort.SearchInts(m, after+1); i < len(m) {
		return m[i], true
	}
	return 0, false
}

// PrevMatch returns the largest member line strictly before the given line.
func (c Composite) PrevMatch(before int) (int, bool) {
	if c.Transparent() {
		if before <= 0 || c.lineCount == 0 {
			return 0, false
		}
		return min(before, c.lineCount) - 1, true
	}
	if c.mode == Union {
		best, ok := 0, false
		for _, m := range c.members {
			if i := sort.SearchInts(m, before); i > 0 {
				if !ok || m[i-1] > best {
					best, ok = m[i-1], true
				}
			}
		}
		return best, ok
	}
	m := c.merge(-1)
	if i := sort.SearchInts(m, before); i > 0 {
		return m[i-1], true
	}
	return 0, false
}

// merge materializes the composition in ascending order, stopping after
// limit members when limit >= 0. Union takes the lowest head among the
// child cursors each step, skipping duplicates; intersection advances every
// cursor to the maximum head and emits on full agreement.
func (c Composite) merge(limit int) []int {
	switch c.mode {
	case Intersect:
		return c.intersect(limit)
	default:
		return c.union(limit)
	}
}

func (c Composite) union(limit int) []int {
	cursors := make([]int, len(c.members))
	var out []int
	for limit < 0 || len(out) < limit {
		lowest, ok := 0, false
		for si, m := range c.members {
			if cursors[si] < len(m) {
				if ln := m[cursors[si]]; !ok || ln < lowest {
					lowest, ok = ln, true
				}
			}
		}
		if !ok {
			break
		}
		for si, m := range c.members {
			if cursors[si] < len(m) && m[cursors[si]] == lowest {
				cursors[si]++
			}
		}
		out = append(out, lowest)
	}
	return out
}

func (c Composite) intersect(limit int) []int {
	cursors := make([]int, len(c.members))
	var out []int
	for limit < 0 || len(out) < limit {
		// candidate is the maximum head; every cursor catches up to it.
		// An exhausted child (including one that was empty all along)
		// ends the result before any head is dereferenced.
		candidate, exhausted := -1, false
		for si, m := range c.members {
			if cursors[si] >= len(m) {
				exhausted = true
				break
			}
			if ln := m[cursors[si]]; ln > candidate {
				candidate = ln
			}
		}
		if exhausted {
			break
		}
		agreed := true
		for si, m := range c.members {
			cursors[si] += sort.SearchInts(m[cursors[si]:], candidate)
			if cursors[si] >= len(m) || m[cursors[si]] != candidate {
				agreed = false
			}
		}
		if agreed {
			out = append(out, candidate)
			for si := range cursors {
				cursors[si]++
			}
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
