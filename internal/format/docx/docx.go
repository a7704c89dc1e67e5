// Package docx implements the Office Open XML word processing format.
//
// Only word/document.xml is distilled and rewritten; every other part of the
// package is copied unchanged.
package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"git.home.luguber.info/inful/exposetext/internal/format"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/mapping"
	"git.home.luguber.info/inful/exposetext/internal/rewrite"
)

// DocumentPart is the package part holding the main document.
const DocumentPart = "word/document.xml"

var prologEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*\sencoding=["']([A-Za-z0-9._:-]+)["']`)

// rules keep the content of <w:t> elements, one line per paragraph.
var rules = []mapping.Rule{
	{Name: "newlines", Pattern: regexp.MustCompile(`\r?\n`)},
	{Name: "paragraphs", Pattern: regexp.MustCompile(`</w:p>|<w:br[^>]*>`), Replace: "\n"},
	{Name: "between-runs", Pattern: regexp.MustCompile(`</w:t>.*?<w:t(?:\s[^>]*)?>`)},
	{Name: "line-prefix", Pattern: regexp.MustCompile(`(?m)^.*<w:t(?:\s[^>]*)?>`)},
	{Name: "line-suffix", Pattern: regexp.MustCompile(`(?m)</w:t>.*$`)},
	{Name: "markup-lines", Pattern: regexp.MustCompile(`(?m)^.*<.*$`)},
	{Name: "entities", Pattern: regexp.MustCompile(`&(?:amp|lt|gt|quot|apos|#\d{1,7}|#x[0-9a-fA-F]{1,6});`), Func: xhtml.UnescapeString, Once: true},
	{Name: "leading-newlines", Pattern: regexp.MustCompile(`^\n+`)},
	{Name: "trailing-newlines", Pattern: regexp.MustCompile(`\n+$`)},
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the characters that are significant in XML text.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// Document is a loaded word processing document.
type Document struct {
	*format.Markup
	raw      []byte
	zr       *zip.Reader
	original string
	enc      encoding.Encoding
	encName  string
}

// New opens the package in raw and distils the main document.
func New(raw []byte, opts format.Options) (format.Format, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFormat, "not a docx package").Build()
	}
	part, err := readPart(zr, DocumentPart)
	if err != nil {
		return nil, err
	}

	d := &Document{raw: raw, zr: zr, encName: "utf-8"}
	source := string(part)
	if m := prologEncoding.FindSubmatch(part); m != nil {
		name := strings.ToLower(string(m[1]))
		if name != "utf-8" && name != "utf8" {
			enc, err := htmlindex.Get(name)
			if err != nil {
				return nil, ferrors.WrapError(err, ferrors.CategoryEncoding, "unknown document encoding").
					WithContext("encoding", name).
					Build()
			}
			decoded, err := enc.NewDecoder().Bytes(part)
			if err != nil {
				return nil, ferrors.WrapError(err, ferrors.CategoryEncoding, "cannot decode document").
					WithContext("encoding", name).
					Build()
			}
			d.enc, d.encName, source = enc, name, string(decoded)
		}
	}
	d.original = source

	m := mapping.NewMapper(source).WithLogger(opts.Log())
	if err := m.Run(rules...); err != nil {
		return nil, err
	}
	d.Markup = format.FromMapper(m, rewrite.Options{
		Escape:    EscapeXML,
		Markers:   rewrite.TagMarkers,
		Separator: opts.TagSeparator,
	})
	return d, nil
}

// Encoding returns the name of the encoding of the main document.
func (d *Document) Encoding() string { return d.encName }

// Bytes rebuilds the package. An unaltered document returns the input bytes.
func (d *Document) Bytes() ([]byte, error) {
	if d.Source() == d.original {
		return bytes.Clone(d.raw), nil
	}
	part := []byte(d.Source())
	if d.enc != nil {
		var err error
		if part, err = d.enc.NewEncoder().Bytes(part); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryEncoding, "cannot encode document").
				WithContext("encoding", d.encName).
				Build()
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range d.zr.File {
		if f.Name != DocumentPart {
			if err := zw.Copy(f); err != nil {
				return nil, packageError(err, f.Name)
			}
			continue
		}
		hdr := f.FileHeader
		hdr.CRC32, hdr.CompressedSize64, hdr.UncompressedSize64 = 0, 0, 0
		w, err := zw.CreateHeader(&hdr)
		if err != nil {
			return nil, packageError(err, f.Name)
		}
		if _, err := w.Write(part); err != nil {
			return nil, packageError(err, f.Name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, packageError(err, "")
	}
	return buf.Bytes(), nil
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFormat, "docx package has no main document").
			WithContext("part", name).
			Build()
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFormat, "cannot read package part").
			WithContext("part", name).
			Build()
	}
	return data, nil
}

func packageError(err error, part string) error {
	return ferrors.WrapError(err, ferrors.CategoryFormat, "cannot write docx package").
		WithContext("part", part).
		Build()
}
