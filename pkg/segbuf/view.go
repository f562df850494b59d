package segbuf

import "strings"

// View is a borrowed byte range. While a view over a resident segment is
// alive, its page cannot be evicted; a view assembled from several segments
// owns its bytes and pins nothing.
type View struct {
	page *Page
	b    []byte
}

func newPinnedView(p *Page, b []byte) View {
	p.Acquire()
	return View{page: p, b: b}
}

func newOwnedView(b []byte) View {
	return View{b: b}
}

// Bytes returns the viewed bytes. Valid until Release.
func (v *View) Bytes() []byte { return v.b }

// Len returns the byte length of the view.
func (v *View) Len() int { return len(v.b) }

// Text renders the view as UTF-8, replacing invalid byte sequences. The
// result does not borrow from the segment and outlives Release.
func (v *View) Text() string {
	return strings.ToValidUTF8(string(v.b), "�")
}

// Release drops the segment reservation. Calling it twice is a no-op.
func (v *View) Release() {
	if v.page != nil {
		v.page.Release()
		v.page = nil
	}
	v.b = nil
}
