package rewrite

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/exposetext/internal/mapping"
)

// MarkerFinder returns, in source order, the structural markers that lie in
// source[from:to].
type MarkerFinder interface {
	Markers(source string, idx *mapping.Index, from, to int) []string
}

// MarkerFunc adapts a function to MarkerFinder.
type MarkerFunc func(source string, idx *mapping.Index, from, to int) []string

func (f MarkerFunc) Markers(source string, idx *mapping.Index, from, to int) []string {
	return f(source, idx, from, to)
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// TagMarkers finds anything that looks like a tag.
var TagMarkers MarkerFinder = MarkerFunc(func(source string, _ *mapping.Index, from, to int) []string {
	return tagPattern.FindAllString(source[from:to], -1)
})

// HTMLMarkers finds start, end and self-closing tags with the HTML tokenizer,
// so attributes containing '>' and comments are handled like a browser would.
var HTMLMarkers MarkerFinder = MarkerFunc(func(source string, _ *mapping.Index, from, to int) []string {
	var markers []string
	z := html.NewTokenizer(strings.NewReader(source[from:to]))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return markers
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			markers = append(markers, string(z.Raw()))
		}
	}
})

// GapMarkers returns the source bytes no distilled byte owns as one marker.
// It suits sources where markup is not delimited, such as Markdown.
//
// A gap that starts a source line after a newline owned by the text, like a
// list item prefix, is re-emitted on a new line of its own.
var GapMarkers MarkerFinder = MarkerFunc(func(source string, idx *mapping.Index, from, to int) []string {
	var sb strings.Builder
	for _, g := range idx.Gaps(from, to) {
		gap := source[g[0]:g[1]]
		lineStart := g[0] > from && source[g[0]-1] == '\n' && gap[0] != '\n'
		if lineStart && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
		sb.WriteString(gap)
	}
	if sb.Len() == 0 {
		return nil
	}
	return []string{sb.String()}
})
