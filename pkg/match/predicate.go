package match

import (
	"bytes"
	"regexp"

	"github.com/pkg/errors"
)

// ErrBadPattern is returned when a filter pattern fails to compile. It is
// reported synchronously to the caller; no matcher is installed.
var ErrBadPattern = errors.New("bad filter pattern")

// Predicate classifies a single line, excluding its line terminator.
// Implementations must be safe for concurrent use.
type Predicate interface {
	Match(line []byte) bool
	String() string
}

type regexPredicate struct {
	re *regexp.Regexp
}

// NewRegex compiles a regex predicate. Invalid UTF-8 in matched lines is
// handled by the engine itself; lines are matched as raw bytes.
func NewRegex(pattern string) (Predicate, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(ErrBadPattern, "%s", err)
	}
	return &regexPredicate{re: re}, nil
}

func (p *regexPredicate) Match(line []byte) bool { return p.re.Match(line) }

func (p *regexPredicate) String() string { return "/" + p.re.String() + "/" }

type literalPredicate struct {
	needle []byte
}

// NewLiteral creates a substring predicate.
func NewLiteral(needle string) Predicate {
	return &literalPredicate{needle: []byte(needle)}
}

func (p *literalPredicate) Match(line []byte) bool { return bytes.Contains(line, p.needle) }

func (p *literalPredicate) String() string { return string(p.needle) }

// TrimEOL strips a trailing LF, and a CR before it, from a raw line range.
func TrimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}
