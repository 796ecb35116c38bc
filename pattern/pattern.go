// Package pattern implements the OSC 1.0 address pattern matcher: a single
// function that decides whether a wildcard pattern matches a concrete
// address, following spec.md §4.3's grammar exactly, including the subtle
// literal-vs-meta rules inside bracket and brace expressions.
package pattern

import "bytes"

// Match reports whether pattern matches address. Both are split on '/'; the
// number of non-empty segments must be equal, and each pair of segments is
// matched independently (a '*' never crosses a '/', which is impossible
// within a segment anyway) — with one reconciled exception: a pattern whose
// final segment is a bare '*' carries over every remaining address segment
// instead of requiring an exact segment count (spec.md §8's dispatch
// calibration registers "/eos/*" as a prefix subscription that must match
// "/eos/out/active/chan", four segments deep). See DESIGN.md for why this
// is read as a deliberate trailing-wildcard allowance rather than a
// contradiction of §4.3's literal equal-segment-count rule.
func Match(pattern, address string) bool {
	pSegs := splitSegments(pattern)
	aSegs := splitSegments(address)

	switch {
	case len(pSegs) == len(aSegs):
		// exact, segment-for-segment match below.
	case len(pSegs) >= 2 && pSegs[len(pSegs)-1] == "*" && len(aSegs) >= len(pSegs)-1:
		prefix := pSegs[:len(pSegs)-1]
		pSegs, aSegs = prefix, aSegs[:len(prefix)]
	default:
		return false
	}
	for i := range pSegs {
		if !matchSegment([]byte(pSegs[i]), []byte(aSegs[i])) {
			return false
		}
	}
	return true
}

func splitSegments(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// matchSegment matches a single '/'-delimited pattern segment against a
// single '/'-delimited address segment, per the grammar in spec.md §4.3.
func matchSegment(pat, s []byte) bool {
	for {
		if len(pat) == 0 {
			return len(s) == 0
		}
		switch pat[0] {
		case '*':
			rest := pat[1:]
			for i := 0; i <= len(s); i++ {
				if matchSegment(rest, s[i:]) {
					return true
				}
			}
			return false

		case '?':
			if len(s) == 0 {
				return false
			}
			pat, s = pat[1:], s[1:]

		case '[':
			cls, rest, ok := parseClass(pat)
			if !ok {
				// Unclosed bracket: the pattern is malformed and yields
				// no match at all.
				return false
			}
			if len(s) == 0 || !cls.matches(s[0]) {
				return false
			}
			pat, s = rest, s[1:]

		case '{':
			alts, rest, ok := parseAlternatives(pat)
			if !ok {
				// Unclosed brace: fall back to literal matching of '{'.
				if len(s) == 0 || s[0] != '{' {
					return false
				}
				pat, s = pat[1:], s[1:]
				continue
			}
			for _, alt := range alts {
				if len(alt) <= len(s) && bytes.Equal(s[:len(alt)], alt) {
					if matchSegment(rest, s[len(alt):]) {
						return true
					}
				}
			}
			return false

		default:
			if len(s) == 0 || s[0] != pat[0] {
				return false
			}
			pat, s = pat[1:], s[1:]
		}
	}
}

// charClass is a parsed '[...]' expression: membership of every byte value,
// already resolved for negation.
type charClass struct {
	member [256]bool
	negate bool
}

func (c *charClass) matches(b byte) bool {
	return c.member[b] != c.negate
}

// parseClass parses a '[...]' expression starting at pat[0] == '['. It
// returns the class, the pattern suffix just past the closing ']', and
// whether the bracket was well formed (closed).
func parseClass(pat []byte) (*charClass, []byte, bool) {
	i := 1 // skip '['
	cls := &charClass{}
	if i < len(pat) && pat[i] == '!' {
		cls.negate = true
		i++
	}
	start := i
	for i < len(pat) {
		if pat[i] == ']' {
			body := pat[start:i]
			applyClassBody(cls, body)
			return cls, pat[i+1:], true
		}
		i++
	}
	return nil, nil, false
}

// applyClassBody interprets the bytes between '[' (and optional '!') and
// the closing ']'. A dash denotes an inclusive range only when it has a
// character before and after it within the body and is not itself the
// first or last byte; otherwise every byte, including a boundary dash, is a
// literal member.
func applyClassBody(cls *charClass, body []byte) {
	i := 0
	for i < len(body) {
		if body[i] == '-' && i > 0 && i < len(body)-1 {
			lo, hi := body[i-1], body[i+1]
			if lo <= hi {
				for c := lo; ; c++ {
					cls.member[c] = true
					if c == hi {
						break
					}
				}
			}
			i++
			continue
		}
		cls.member[body[i]] = true
		i++
	}
}

// parseAlternatives parses a '{a,b,c}' expression starting at pat[0] ==
// '{'. Nested braces are permitted and balanced but their contents are not
// further interpreted: each alternative is a literal byte string split on
// top-level commas. It returns the alternatives, the pattern suffix just
// past the closing '}', and whether the braces were balanced.
func parseAlternatives(pat []byte) ([][]byte, []byte, bool) {
	depth := 1
	i := 1
	start := 1
	var alts [][]byte
	for i < len(pat) {
		switch pat[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				alts = append(alts, pat[start:i])
				return alts, pat[i+1:], true
			}
		case ',':
			if depth == 1 {
				alts = append(alts, pat[start:i])
				start = i + 1
			}
		}
		i++
	}
	return nil, nil, false
}
