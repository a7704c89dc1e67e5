// Package txt implements the plain text format.
package txt

import (
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	"git.home.luguber.info/inful/exposetext/internal/alter"
	"git.home.luguber.info/inful/exposetext/internal/format"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

// Document is a plain text file. Its text is its content.
type Document struct {
	format.Queue
	text string
	// enc is nil for UTF-8 input.
	enc     encoding.Encoding
	encName string
}

// New loads raw. Input that is not valid UTF-8 is decoded with a sniffed
// encoding and written back in that encoding.
func New(raw []byte, opts format.Options) (format.Format, error) {
	if utf8.Valid(raw) {
		return &Document{text: string(raw), encName: "utf-8"}, nil
	}
	enc, name, _ := charset.DetermineEncoding(raw, "text/plain")
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEncoding, "cannot decode text").
			WithContext("encoding", name).
			Build()
	}
	opts.Log().Debug("Decoded non UTF-8 text", "encoding", name)
	return &Document{text: string(decoded), enc: enc, encName: name}, nil
}

// Encoding returns the name of the encoding used for Bytes.
func (d *Document) Encoding() string { return d.encName }

func (d *Document) Text() string { return d.text }

func (d *Document) Bytes() ([]byte, error) {
	if d.enc == nil {
		return []byte(d.text), nil
	}
	out, err := d.enc.NewEncoder().Bytes([]byte(d.text))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEncoding, "cannot encode text").
			WithContext("encoding", d.encName).
			Build()
	}
	return out, nil
}

func (d *Document) ApplyAlters() error {
	alts := d.Sorted()
	if len(alts) == 0 {
		return nil
	}
	text, err := alter.PatchString(d.text, alts)
	if err != nil {
		return err
	}
	d.text = text
	d.Reset()
	return nil
}
