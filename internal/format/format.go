// Package format defines the document format contract and the registry that
// selects an implementation by file extension.
package format

import (
	"log/slog"

	"git.home.luguber.info/inful/exposetext/internal/alter"
)

// Format exposes the text of one loaded document and applies alterations to it.
//
// Offsets passed to AddAlter count runes of Text(). A Format is owned by a
// single caller and is not safe for concurrent use.
type Format interface {
	// Text returns the distilled text.
	Text() string
	// Bytes serializes the document in its original format.
	Bytes() ([]byte, error)
	// AddAlter queues the replacement of Text()[start:end] with text.
	AddAlter(start, end int, text string) error
	// ApplyAlters applies every queued alteration and clears the queue. On
	// error the document and the queue are left unchanged.
	ApplyAlters() error
	// Pending returns the number of queued alterations.
	Pending() int
}

// Options are shared by all constructors. Adapters ignore what they do not use.
type Options struct {
	// TagSeparator joins structural markers re-inserted by a markup rewrite.
	TagSeparator string
	// PDFEncoding names the single-byte encoding of PDF text strings.
	PDFEncoding string
	Logger      *slog.Logger
}

// Log returns the configured logger or the default one.
func (o Options) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Constructor loads raw bytes into a Format.
type Constructor func(raw []byte, opts Options) (Format, error)

// Queue holds the pending alterations of one document. Adapters embed it.
type Queue struct {
	buf alter.Buffer
}

// AddAlter queues a replacement; see alter.Buffer.Add.
func (q *Queue) AddAlter(start, end int, text string) error {
	return q.buf.Add(start, end, text)
}

// Pending returns the number of queued alterations.
func (q *Queue) Pending() int {
	return q.buf.Len()
}

// Sorted returns the queued alterations in application order.
func (q *Queue) Sorted() []alter.Alteration {
	return q.buf.Sorted()
}

// Reset drops the queued alterations after a successful apply.
func (q *Queue) Reset() {
	q.buf.Clear()
}
