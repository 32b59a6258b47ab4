/*
Package dynastore – wildcard patterns.

Patterns use a single metacharacter: "%" matches any run of characters,
including the empty run. There is no escape syntax; every other
character matches itself. CompilePattern turns a descriptor into a
matcher closure so the segment split happens once per query, not once
per record.
*/
package dynastore

import "strings"

// PatternDescriptor selects records whose field value matches a
// wildcard pattern.
type PatternDescriptor struct {
	Like            string `json:"like" yaml:"like"`
	CaseInsensitive bool   `json:"caseInsensitive,omitempty" yaml:"caseInsensitive,omitempty"`
}

// Like selects records matching pattern, case sensitively.
func Like(pattern string) PatternDescriptor {
	return PatternDescriptor{Like: pattern}
}

// ILike selects records matching pattern, ignoring case.
func ILike(pattern string) PatternDescriptor {
	return PatternDescriptor{Like: pattern, CaseInsensitive: true}
}

// CompilePattern builds a matcher for the descriptor. The empty pattern
// matches only the empty string; "%" alone matches everything.
func CompilePattern(p PatternDescriptor) func(string) bool {
	pat := p.Like
	fold := func(s string) string { return s }
	if p.CaseInsensitive {
		fold = strings.ToLower
		pat = strings.ToLower(pat)
	}

	if !strings.Contains(pat, "%") {
		return func(s string) bool { return fold(s) == pat }
	}

	segs := strings.Split(pat, "%")
	first, last := segs[0], segs[len(segs)-1]
	middle := segs[1 : len(segs)-1]

	return func(s string) bool {
		s = fold(s)
		if !strings.HasPrefix(s, first) {
			return false
		}
		s = s[len(first):]
		if !strings.HasSuffix(s, last) {
			return false
		}
		s = s[:len(s)-len(last)]
		// Greedy left-to-right placement of the inner segments is
		// sufficient: each one only needs some occurrence after the
		// previous match.
		for _, seg := range middle {
			if seg == "" {
				continue
			}
			i := strings.Index(s, seg)
			if i < 0 {
				return false
			}
			s = s[i+len(seg):]
		}
		return true
	}
}
