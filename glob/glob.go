// Package glob filters source ids with shell like patterns.
package glob

import (
	"strings"

	"github.com/gobwas/glob"
)

// Matcher matches names against a compiled pattern. The zero pattern
// matches every name. A pattern without special characters matches
// only the identical name.
type Matcher struct {
	pattern string
	exact   bool
	glob    glob.Glob
}

// Compile compiles the pattern. Source ids contain colons and dots, therefore
// no separators are used and a single * spans the whole id.
func Compile(pattern string) (*Matcher, error) {
	m := &Matcher{
		pattern: pattern,
	}

	if len(pattern) == 0 {
		return m, nil
	}

	if !IsPattern(pattern) {
		m.exact = true
		return m, nil
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}

	m.glob = g

	return m, nil
}

func (m *Matcher) Match(name string) bool {
	if m == nil {
		return true
	}

	if m.exact {
		return name == m.pattern
	}

	if m.glob == nil {
		return true
	}

	return m.glob.Match(name)
}

func (m *Matcher) String() string {
	if m == nil {
		return ""
	}

	return m.pattern
}

// IsPattern returns whether the pattern contains any special characters.
func IsPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{\\")
}
