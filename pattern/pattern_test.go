package pattern

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCalibrationTable exercises the exact oracle from spec.md §4.3.
func TestCalibrationTable(t *testing.T) {
	cases := []struct {
		pattern string
		addr    string
		want    bool
	}{
		{"/?", "/a", true},
		{"/?", "/ab", false},
		{"/?", "/A", true},
		{"/?", "/a/b", false},

		{"/*", "/a", true},
		{"/*", "/ab", true},
		{"/*", "/A", true},
		{"/*", "/a/b", false},

		{"/[a-z]", "/a", true},
		{"/[a-z]", "/ab", false},
		{"/[a-z]", "/A", false},
		{"/[a-z]", "/a/b", false},

		{"/[!a-z]", "/a", false},
		{"/[!a-z]", "/ab", false},
		{"/[!a-z]", "/A", true},
		{"/[!a-z]", "/a/b", false},

		{"/{a,b}", "/a", true},
		{"/{a,b}", "/ab", false},
		{"/{a,b}", "/A", false},
		{"/{a,b}", "/a/b", false},

		{"/*/b", "/a", false},
		{"/*/b", "/ab", false},
		{"/*/b", "/A", false},
		{"/*/b", "/a/b", true},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%s~%s", c.pattern, c.addr), func(t *testing.T) {
			require.Equal(t, c.want, Match(c.pattern, c.addr))
		})
	}
}

func TestLiteralPatternsMatchOnlyThemselves(t *testing.T) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	rands := func() string {
		b := make([]byte, rand.Intn(10)+1)
		for i := range b {
			b[i] = chars[rand.Intn(len(chars))]
		}
		return string(b)
	}
	for i := 0; i < 200; i++ {
		p := "/" + rands() + "/" + rands()
		require.True(t, Match(p, p))
		require.False(t, Match(p, p+"x"))
	}
}

func TestWildcardsAreLiteralInsideBracketsAndBraces(t *testing.T) {
	require.True(t, Match("/[*?]", "/*"))
	require.True(t, Match("/[*?]", "/?"))
	require.False(t, Match("/[*?]", "/a"))

	require.True(t, Match("/{a*,b?}", "/a*"))
	require.True(t, Match("/{a*,b?}", "/b?"))
	require.False(t, Match("/{a*,b?}", "/ax"))
}

func TestEmptyClass(t *testing.T) {
	require.False(t, Match("/[]", "/a"))
	require.True(t, Match("/[!]", "/a"))
	require.True(t, Match("/[!]", "/z"))
}

func TestBoundaryDashIsLiteral(t *testing.T) {
	require.True(t, Match("/[a-]", "/a"))
	require.True(t, Match("/[a-]", "/-"))
	require.False(t, Match("/[a-]", "/b"))

	require.True(t, Match("/[-z]", "/z"))
	require.True(t, Match("/[-z]", "/-"))
}

func TestUnclosedBracketNeverMatches(t *testing.T) {
	require.False(t, Match("/[abc", "/a"))
	require.False(t, Match("/[abc", "/[abc"))
}

func TestUnclosedBraceFallsBackToLiteral(t *testing.T) {
	require.True(t, Match("/{abc", "/{abc"))
	require.False(t, Match("/{abc", "/abc"))
}

func TestNestedBalancedBraces(t *testing.T) {
	// The alternatives are "a{x,y}" and "b", taken literally (commas
	// inside the nested braces don't split the outer alternation).
	require.True(t, Match("/{a{x,y},b}", "/a{x,y}"))
	require.True(t, Match("/{a{x,y},b}", "/b"))
	require.False(t, Match("/{a{x,y},b}", "/ax"))
}

func TestEmptyAlternativeMatchesEmptyString(t *testing.T) {
	require.True(t, Match("/{,a}end", "/end"))
	require.True(t, Match("/{,a}end", "/aend"))
}

func TestSegmentCountMustMatch(t *testing.T) {
	require.False(t, Match("/a", "/a/b"))
	require.False(t, Match("/a/b", "/a"))
	require.True(t, Match("/a/b", "/a/b"))
}

// TestTrailingWildcardCarriesOverSegments exercises spec.md §8's dispatch
// calibration: "/eos/*" must match "/eos/out/active/chan" even though the
// two differ in segment count, because a trailing bare '*' is read as a
// subtree subscription rather than a single-segment wildcard.
func TestTrailingWildcardCarriesOverSegments(t *testing.T) {
	require.True(t, Match("/eos/*", "/eos/out/active/chan"))
	require.True(t, Match("/eos/*", "/eos/out"))
	require.True(t, Match("/eos/*", "/eos"))
	require.False(t, Match("/eos/*", "/other/out/active/chan"))

	// A bare, single-segment '*' keeps the calibration table's strict rule:
	// it still does not cross into a second segment.
	require.False(t, Match("/*", "/a/b"))
}

func TestRangeRequiresBothEndpoints(t *testing.T) {
	// A dash that is the first byte of the class body (immediately after
	// '!') is not a range start, it's a literal member alongside 'z'; the
	// negated class therefore excludes only '-' and 'z'.
	require.False(t, Match("/[!-z]", "/-"))
	require.False(t, Match("/[!-z]", "/z"))
	require.True(t, Match("/[!-z]", "/m"))
}
