// Package html implements the HTML format.
//
// The text of a document is the content of its body with tags, scripts,
// styles and comments removed and character references resolved.
package html

import (
	"regexp"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"git.home.luguber.info/inful/exposetext/internal/format"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/mapping"
	"git.home.luguber.info/inful/exposetext/internal/rewrite"
)

// markupEntities denote the characters that must stay escaped in markup.
const markupEntities = `&(?:amp|lt|gt|quot|apos|#0*(?:60|62|38|34|39)|#[xX]0*(?:3[cCeE]|26|22|27));`

var (
	charRef      = regexp.MustCompile(`&#[xX][0-9a-fA-F]{1,4};|&#\d{1,4};|&\w{1,6};`)
	markupEntity = regexp.MustCompile(markupEntities)
	markupRef    = regexp.MustCompile(`^` + markupEntities + `$`)
)

// rules distil a body into text, in order.
var rules = []mapping.Rule{
	{Name: "head", Pattern: regexp.MustCompile(`(?is)^.*<body[^>]*>`)},
	{Name: "tail", Pattern: regexp.MustCompile(`(?is)</body>.*$`)},
	{Name: "line-breaks", Pattern: regexp.MustCompile(`(?i)<br ?/?>`), Replace: "\n"},
	{Name: "elements", Pattern: regexp.MustCompile(
		`(?is)<script[^>]*>.*?</script>|<style[^>]*>.*?</style>|<template[^>]*>.*?</template>|<!--.*?-->|<[^>]+>`)},
	{Name: "indentation", Pattern: regexp.MustCompile(`(?m)^[ \x{00a0}]+`)},
	{Name: "blank-lines", Pattern: regexp.MustCompile(`(\n\r?){3,}`), Replace: "\n\n"},
	{Name: "entities", Pattern: markupEntity, Func: xhtml.UnescapeString, Once: true},
	{Name: "leading-newlines", Pattern: regexp.MustCompile(`^\n+`)},
	{Name: "trailing-newlines", Pattern: regexp.MustCompile(`\n+$`)},
}

// Document is a loaded HTML document.
type Document struct {
	*format.Markup
}

// New decodes raw and distils its text.
func New(raw []byte, opts format.Options) (format.Format, error) {
	source, err := decode(raw, opts)
	if err != nil {
		return nil, err
	}
	m := mapping.NewMapper(unescape(source)).WithLogger(opts.Log())
	if err := m.Run(rules...); err != nil {
		return nil, err
	}
	return &Document{Markup: format.FromMapper(m, rewrite.Options{
		Escape:    xhtml.EscapeString,
		Markers:   rewrite.HTMLMarkers,
		Separator: opts.TagSeparator,
	})}, nil
}

// Bytes returns the markup encoded as UTF-8.
func (d *Document) Bytes() ([]byte, error) {
	return []byte(d.Source()), nil
}

func decode(raw []byte, opts format.Options) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	enc, name, _ := charset.DetermineEncoding(raw, "text/html")
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryEncoding, "cannot decode html").
			WithContext("encoding", name).
			Build()
	}
	opts.Log().Debug("Decoded non UTF-8 html", "encoding", name)
	return string(decoded), nil
}

// unescape resolves character references in the source, except those that
// denote markup characters.
func unescape(source string) string {
	return charRef.ReplaceAllStringFunc(source, func(ref string) string {
		if markupRef.MatchString(ref) {
			return ref
		}
		return xhtml.UnescapeString(ref)
	})
}
