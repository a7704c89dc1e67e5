// Package markdown implements the Markdown format.
//
// The text is what a reader sees: inline text of headings, paragraphs and
// list items, code spans and code block lines, with one newline between
// blocks. Emphasis markers, link destinations, raw HTML and frontmatter stay
// in the source and survive alterations as gaps.
package markdown

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/inful/mdfp"
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	xhtml "golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/exposetext/internal/format"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/frontmatter"
	"git.home.luguber.info/inful/exposetext/internal/logfields"
	"git.home.luguber.info/inful/exposetext/internal/mapping"
	"git.home.luguber.info/inful/exposetext/internal/rewrite"
)

var entity = regexp.MustCompile(`^&(?:#[xX][0-9a-fA-F]{1,6}|#[0-9]{1,7}|[A-Za-z][A-Za-z0-9]{1,31});`)

var escaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`<`, `\<`, `>`, `\>`, `#`, `\#`, `!`, `\!`, `|`, `\|`, `&`, `\&`, `~`, `\~`,
)

// Escape protects Markdown punctuation in replacement text with backslashes.
func Escape(s string) string { return escaper.Replace(s) }

// Document is a loaded Markdown file.
type Document struct {
	*format.Markup
	fm  frontmatter.Block
	log *slog.Logger
}

// New parses raw and distils its text.
func New(raw []byte, opts format.Options) (format.Format, error) {
	if !utf8.Valid(raw) {
		return nil, ferrors.EncodingError("markdown must be UTF-8").Build()
	}
	fm, err := frontmatter.Split(raw)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFormat, "cannot read frontmatter").Build()
	}

	d := &distiller{src: raw}
	root := goldmark.New().Parser().Parse(text.NewReader(raw[fm.BodyStart:]))
	if err := d.walk(root, fm.BodyStart); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "cannot index markdown").Fatal().Build()
	}
	opts.Log().Debug("Distilled markdown",
		logfields.TextLen(d.text.Len()),
		"frontmatter", fm.Present())

	return &Document{
		Markup: format.NewMarkup(string(raw), d.text.String(), d.idx.Index(), rewrite.Options{
			Escape:  Escape,
			Markers: rewrite.GapMarkers,
		}),
		fm:  fm,
		log: opts.Log(),
	}, nil
}

// Frontmatter returns the parsed YAML frontmatter, empty when there is none.
func (d *Document) Frontmatter() (map[string]any, error) {
	fields, err := d.fm.Fields()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFormat, "invalid frontmatter").Build()
	}
	return fields, nil
}

// ApplyAlters applies the queued alterations and warns when the frontmatter
// carries a fingerprint that no longer matches the content.
func (d *Document) ApplyAlters() error {
	n := d.Pending()
	if err := d.Markup.ApplyAlters(); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if stale, err := d.FingerprintStale(); err == nil && stale {
		d.log.Warn("Frontmatter fingerprint no longer matches the content",
			slog.String("field", mdfp.FingerprintField))
	}
	return nil
}

// Fingerprint computes the content fingerprint from the frontmatter fields,
// except the fingerprint itself, and the body.
func (d *Document) Fingerprint() (string, error) {
	fields, err := d.Frontmatter()
	if err != nil {
		return "", err
	}
	delete(fields, mdfp.FingerprintField)
	head := ""
	if len(fields) > 0 {
		out, err := yaml.Marshal(fields)
		if err != nil {
			return "", ferrors.WrapError(err, ferrors.CategoryFormat, "cannot encode frontmatter").Build()
		}
		head = strings.TrimSuffix(string(out), "\n")
	}
	return mdfp.CalculateFingerprintFromParts(head, d.Source()[d.fm.BodyStart:]), nil
}

// FingerprintStale reports whether the frontmatter has a fingerprint field
// that differs from Fingerprint.
func (d *Document) FingerprintStale() (bool, error) {
	fields, err := d.Frontmatter()
	if err != nil {
		return false, err
	}
	stored, ok := fields[mdfp.FingerprintField].(string)
	if !ok {
		return false, nil
	}
	current, err := d.Fingerprint()
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(stored) != current, nil
}

// Bytes returns the Markdown source.
func (d *Document) Bytes() ([]byte, error) {
	return []byte(d.Source()), nil
}

// distiller collects the visible text of a goldmark tree and maps every byte
// of it back into the source.
type distiller struct {
	src  []byte
	text strings.Builder
	idx  mapping.Builder
	// end is one past the last source byte owned by the text so far.
	end int
	// block is set when a new block starts and cleared by its first text.
	block bool
}

func (d *distiller) walk(root gmast.Node, base int) error {
	return gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Text:
			seg := node.Segment
			if err := d.segment(base+seg.Start, base+seg.Stop, node.IsRaw()); err != nil {
				return gmast.WalkStop, err
			}
			if node.SoftLineBreak() || node.HardLineBreak() {
				if err := d.lineBreak(base + seg.Stop); err != nil {
					return gmast.WalkStop, err
				}
			}
		case *gmast.CodeBlock, *gmast.FencedCodeBlock:
			d.block = true
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				if err := d.segment(base+seg.Start, base+seg.Stop, true); err != nil {
					return gmast.WalkStop, err
				}
			}
			return gmast.WalkSkipChildren, nil
		case *gmast.HTMLBlock, *gmast.RawHTML, *gmast.Image, *gmast.AutoLink:
			return gmast.WalkSkipChildren, nil
		default:
			if n.Type() == gmast.TypeBlock {
				d.block = true
			}
		}
		return gmast.WalkContinue, nil
	})
}

func (d *distiller) add(src int, s string, tail int) error {
	if err := d.idx.Add(src, len(s), tail); err != nil {
		return err
	}
	d.text.WriteString(s)
	d.end = src + len(s) + tail
	return nil
}

// separate emits the newline between two blocks, mapped to the first source
// newline between them.
func (d *distiller) separate(next int) error {
	if !d.block {
		return nil
	}
	d.block = false
	t := d.text.String()
	if t == "" || t[len(t)-1] == '\n' || next <= d.end {
		return nil
	}
	if i := bytes.IndexByte(d.src[d.end:next], '\n'); i >= 0 {
		return d.add(d.end+i, "\n", 0)
	}
	return nil
}

func (d *distiller) lineBreak(from int) error {
	if from < d.end {
		from = d.end
	}
	if i := bytes.IndexByte(d.src[from:], '\n'); i >= 0 {
		return d.add(from+i, "\n", 0)
	}
	return nil
}

// segment emits source[start:stop]. Unless raw, a backslash escape becomes
// the escaped character owned by its backslash and a character reference
// becomes its value owned by the whole reference.
func (d *distiller) segment(start, stop int, raw bool) error {
	if start >= stop {
		return nil
	}
	if err := d.separate(start); err != nil {
		return err
	}
	if raw {
		return d.add(start, string(d.src[start:stop]), 0)
	}

	run := start
	flush := func(to int) error {
		if to > run {
			return d.add(run, string(d.src[run:to]), 0)
		}
		return nil
	}
	for i := start; i < stop; {
		switch c := d.src[i]; {
		case c == '\\' && i+1 < stop && isPunct(d.src[i+1]):
			if err := flush(i); err != nil {
				return err
			}
			if err := d.add(i, string(d.src[i+1]), 1); err != nil {
				return err
			}
			i += 2
			run = i
			continue
		case c == '&':
			if ref := entity.Find(d.src[i:stop]); ref != nil {
				value := xhtml.UnescapeString(string(ref))
				if value != string(ref) && len(value) <= len(ref) {
					if err := flush(i); err != nil {
						return err
					}
					if err := d.add(i, value, len(ref)-len(value)); err != nil {
						return err
					}
					i += len(ref)
					run = i
					continue
				}
			}
		}
		i++
	}
	return flush(stop)
}

func isPunct(c byte) bool {
	return c >= '!' && c <= '/' || c >= ':' && c <= '@' || c >= '[' && c <= '`' || c >= '{' && c <= '~'
}
