package mapping

import (
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

var entities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">")

func TestMapper_CollapsedEntityOwnsItsSource(t *testing.T) {
	m := NewMapper("a&amp;b")
	n, err := m.Apply(Rule{Name: "entities", Pattern: regexp.MustCompile(`&\w+;`), Func: entities.Replace, Once: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "a&b", m.Text())

	x := m.Index()
	assert.Equal(t, []int{0, 1, 6}, x.Offsets())
	assert.Equal(t, 6, x.Extent(1))
	assert.Equal(t, 1, x.Extent(0))
	assert.Equal(t, 7, x.Extent(2))
}

func TestMapper_OnceUnescapesASingleLevel(t *testing.T) {
	rule := Rule{Name: "entities", Pattern: regexp.MustCompile(`&\w+;`), Func: entities.Replace, Once: true}

	m := NewMapper("&amp;lt;")
	require.NoError(t, m.Run(rule))
	assert.Equal(t, "&lt;", m.Text())

	rule.Once = false
	m = NewMapper("&amp;lt;")
	require.NoError(t, m.Run(rule))
	assert.Equal(t, "<", m.Text(), "a fixed point unescapes repeatedly")
}

func TestMapper_RunsToFixedPoint(t *testing.T) {
	m := NewMapper("x<<a>>y")
	n, err := m.Apply(Rule{Name: "tags", Pattern: regexp.MustCompile(`<[^<>]*>`)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "xy", m.Text())

	want := []Run{{Dist: 0, Src: 0, Len: 1}, {Dist: 1, Src: 6, Len: 1}}
	if diff := cmp.Diff(want, m.Index().Runs()); diff != "" {
		t.Fatalf("runs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, [][2]int{{1, 6}}, m.Index().Gaps(0, 7))
}

func TestMapper_ReplacementExpandsGroups(t *testing.T) {
	m := NewMapper("x<b>hi</b>y")
	require.NoError(t, m.Run(Rule{Name: "bold", Pattern: regexp.MustCompile(`<b>(\w+)</b>`), Replace: "$1"}))
	assert.Equal(t, "xhiy", m.Text())

	// Replacement bytes inherit the offsets of the span start.
	assert.Equal(t, []int{0, 1, 2, 10}, m.Index().Offsets())
	assert.Equal(t, 10, m.Index().Extent(2))
}

func TestMapper_NoOpMatchesAreSkipped(t *testing.T) {
	m := NewMapper("bab")
	n, err := m.Apply(Rule{Name: "drop-a", Pattern: regexp.MustCompile(`a*`)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "bb", m.Text())
}

func TestMapper_GrowingReplacementFailsBeforeMutation(t *testing.T) {
	m := NewMapper("abc")

	err := m.RemoveSpan(0, 1, "xy")
	require.ErrorIs(t, err, ErrGrowingReplacement)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryInternal))

	_, err = m.Apply(Rule{Name: "grow", Pattern: regexp.MustCompile(`[ac]`), Func: func(s string) string {
		if s == "c" {
			return "cc"
		}
		return ""
	}})
	require.ErrorIs(t, err, ErrGrowingReplacement)

	assert.Equal(t, "abc", m.Text())
	assert.Equal(t, []int{0, 1, 2}, m.Index().Offsets())
}

func TestMapper_RemoveSpan(t *testing.T) {
	m := NewMapper("hello world")
	require.NoError(t, m.RemoveSpan(5, 11, "!"))
	assert.Equal(t, "hello!", m.Text())
	assert.Equal(t, 11, m.Index().Extent(5))

	require.Error(t, m.RemoveSpan(4, 9, ""))
}

func TestMapper_NoConvergence(t *testing.T) {
	swap := func(s string) string {
		if s == "a" {
			return "b"
		}
		return "a"
	}
	m := NewMapper("ab")
	_, err := m.Apply(Rule{Name: "swap", Pattern: regexp.MustCompile(`[ab]`), Func: swap})
	require.ErrorIs(t, err, ErrNoConvergence)
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.True(t, classified.IsFatal())
}

func TestMapper_MappingIsMonotonic(t *testing.T) {
	src := "<html><body>\n<h1>Title &amp; more</h1>\n<p>First<br>second</p>\n\n\n\n<p>  third</p></body></html>"
	m := NewMapper(src)
	require.NoError(t, m.Run(
		Rule{Name: "head", Pattern: regexp.MustCompile(`(?is)^.*<body[^>]*>`)},
		Rule{Name: "tail", Pattern: regexp.MustCompile(`(?is)</body>.*$`)},
		Rule{Name: "br", Pattern: regexp.MustCompile(`(?i)<br ?/?>`), Replace: "\n"},
		Rule{Name: "tags", Pattern: regexp.MustCompile(`<[^>]+>`)},
		Rule{Name: "indent", Pattern: regexp.MustCompile(`(?m)^ +`)},
		Rule{Name: "blank-lines", Pattern: regexp.MustCompile(`\n{3,}`), Replace: "\n\n"},
		Rule{Name: "entities", Pattern: regexp.MustCompile(`&\w+;`), Func: entities.Replace, Once: true},
		Rule{Name: "lead", Pattern: regexp.MustCompile(`^\n+`)},
	))
	assert.Equal(t, "Title & more\nFirst\nsecond\n\nthird", m.Text())

	offsets := m.Index().Offsets()
	require.Len(t, offsets, len(m.Text()))
	for i := 1; i < len(offsets); i++ {
		require.Less(t, offsets[i-1], offsets[i], "offset %d", i)
	}
	for i, off := range offsets {
		if src[off] != m.Text()[i] && m.Text()[i] != '&' && m.Text()[i] != '\n' {
			t.Fatalf("byte %d (%q) maps to %q", i, m.Text()[i], src[off])
		}
	}
}
