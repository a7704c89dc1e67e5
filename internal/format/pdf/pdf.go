// Package pdf implements the PDF format.
//
// The text of a document is the concatenation of the strings painted by the
// text showing operators of its content streams. Alterations are distributed
// over those string tokens; the file is written back as an incremental update
// that replaces the changed streams.
package pdf

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"git.home.luguber.info/inful/exposetext/internal/alter"
	"git.home.luguber.info/inful/exposetext/internal/format"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/logfields"
)

// DefaultEncoding is used for string bytes when no encoding is configured.
const DefaultEncoding = "windows-1252"

// Document is a loaded PDF.
type Document struct {
	format.Queue
	file *file
	cm   *charmap.Charmap
	// spans lists the shown tokens of all streams in text order.
	spans []span
}

type span struct {
	stream *stream
	token  int
	text   string
}

// New parses raw and collects the shown text.
func New(raw []byte, opts format.Options) (format.Format, error) {
	cm, err := lookupCharmap(opts.PDFEncoding)
	if err != nil {
		return nil, err
	}
	f, err := parseFile(raw)
	if err != nil {
		return nil, err
	}
	d := &Document{file: f, cm: cm}
	log := opts.Log()
	for _, s := range f.streams {
		shown := s.content.Shown()
		for _, i := range shown {
			d.spans = append(d.spans, span{stream: s, token: i, text: d.decode(s.content.Tokens[i].Value)})
		}
		log.Debug("Found content stream", logfields.Stream(s.num), "strings", len(shown))
	}
	return d, nil
}

func lookupCharmap(name string) (*charmap.Charmap, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "unknown pdf encoding").
			WithContext("encoding", name).
			Build()
	}
	cm, ok := enc.(*charmap.Charmap)
	if !ok {
		return nil, ferrors.ConfigError("pdf encoding must be a single byte encoding").
			WithContext("encoding", name).
			Build()
	}
	return cm, nil
}

func (d *Document) decode(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(d.cm.DecodeByte(c))
	}
	return sb.String()
}

func (d *Document) encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		c, ok := d.cm.EncodeRune(r)
		if !ok {
			c = '?'
		}
		out = append(out, c)
	}
	return out
}

// Text returns the shown strings concatenated.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, s := range d.spans {
		sb.WriteString(s.text)
	}
	return sb.String()
}

// Bytes returns the input unchanged, or with an incremental update when
// streams were altered.
func (d *Document) Bytes() ([]byte, error) {
	return d.file.update()
}

// ApplyAlters distributes the queued alterations over the shown tokens.
// Characters the string encoding cannot represent are written as '?' and the
// text reflects what was written.
func (d *Document) ApplyAlters() error {
	alts := d.Sorted()
	if len(alts) == 0 {
		return nil
	}
	texts := make([][]rune, len(d.spans))
	total := 0
	for i, s := range d.spans {
		texts[i] = []rune(s.text)
		total += len(texts[i])
	}
	if err := alter.CheckBounds(alts, total); err != nil {
		return err
	}
	if len(texts) == 0 {
		return ferrors.ValidationError("document shows no text strings to alter").Build()
	}

	splitAlterations(texts, alts)

	for i := range d.spans {
		sp := &d.spans[i]
		text := string(texts[i])
		if text == sp.text {
			continue
		}
		encoded := d.encode(text)
		sp.stream.content.Tokens[sp.token].SetValue(encoded)
		sp.stream.dirty = true
		sp.text = d.decode(encoded)
	}
	d.Reset()
	return nil
}

// splitAlterations applies sorted alterations to consecutive token texts.
// A replacement spanning several tokens gives each token as many characters
// as it loses and the last one the rest. An insertion goes into the token
// that contains its offset, or at the end of the last token.
func splitAlterations(texts [][]rune, alts []alter.Alteration) {
	idx, charpos, xdiff := 0, 0, 0
	// advance moves to the token holding offset i. A token ending at i is
	// passed.
	advance := func(i int) {
		for idx < len(texts) && charpos+len(texts[idx])-xdiff <= i {
			charpos += len(texts[idx]) - xdiff
			idx++
			xdiff = 0
		}
	}
	for _, a := range alts {
		repl := []rune(a.Text)
		i1, i2 := a.Start, a.End

		if i1 == i2 {
			advance(i1)
			if idx == len(texts) {
				last := len(texts) - 1
				texts[last] = append(texts[last], repl...)
				continue
			}
			pos := i1 - charpos + xdiff
			texts[idx] = splice(texts[idx], pos, pos, repl)
			xdiff += len(repl)
			continue
		}

		for i1 < i2 {
			advance(i1)
			if idx == len(texts) {
				break
			}
			tok := texts[idx]
			mpos := i1 - charpos
			mlen := min(i2-i1, len(tok)-xdiff-mpos)
			var r []rune
			if mlen < i2-i1 {
				n := min(mlen, len(repl))
				r, repl = repl[:n], repl[n:]
			} else {
				r, repl = repl, nil
			}
			texts[idx] = splice(tok, mpos+xdiff, mpos+xdiff+mlen, r)
			xdiff += len(r) - mlen
			i1 += mlen
		}
	}
}

func splice(s []rune, from, to int, r []rune) []rune {
	out := make([]rune, 0, len(s)-(to-from)+len(r))
	out = append(out, s[:from]...)
	out = append(out, r...)
	return append(out, s[to:]...)
}
