// Package rewrite turns alterations of distilled text into edits of the
// markup the text was distilled from.
//
// Unedited markup is copied verbatim, replacement text is escaped for the
// markup syntax, and structural markers (tags) that an edited span crossed
// are re-emitted after the replacement so the document keeps its shape.
package rewrite

import (
	"strings"
	"unicode/utf8"

	"git.home.luguber.info/inful/exposetext/internal/alter"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/mapping"
)

// DefaultSeparator joins re-inserted markers.
const DefaultSeparator = "\n"

// Options configures a Rewriter.
type Options struct {
	// Escape converts replacement text into markup. Nil copies it raw.
	Escape func(string) string
	// Markers finds the structural markers inside an edited source span. Nil
	// drops everything the span covered.
	Markers MarkerFinder
	// Separator joins re-inserted markers. Empty means DefaultSeparator.
	Separator string
}

// Rewriter applies alterations to one markup source.
type Rewriter struct {
	source string
	index  *mapping.Index
	opts   Options
}

// New returns a Rewriter for source whose distilled text is described by idx.
func New(source string, idx *mapping.Index, opts Options) *Rewriter {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	if opts.Escape == nil {
		opts.Escape = func(s string) string { return s }
	}
	return &Rewriter{source: source, index: idx, opts: opts}
}

// Apply rewrites the source with alts, which must be sorted, non-overlapping
// and expressed in byte offsets of the distilled text. It returns the new
// source and the index of the patched distilled text into it.
func (r *Rewriter) Apply(alts []alter.Alteration) (string, *mapping.Index, error) {
	n := r.index.Len()
	if err := alter.CheckBounds(alts, n); err != nil {
		return "", nil, err
	}

	w := &writer{src: r.source}
	w.out.Grow(len(r.source))
	dist := 0
	for _, a := range alts {
		at := r.insertionPoint(a.Start)
		if err := w.verbatim(r.index.Slice(dist, a.Start), at); err != nil {
			return "", nil, err
		}
		if err := w.replacement(a.Text, r.opts.Escape); err != nil {
			return "", nil, err
		}
		if a.End > a.Start {
			end := r.index.Extent(a.End - 1)
			if r.opts.Markers != nil {
				if markers := r.opts.Markers.Markers(r.source, r.index, at, end); len(markers) > 0 {
					w.out.WriteString(strings.Join(markers, r.opts.Separator))
				}
			}
			w.cursor = end
		}
		dist = a.End
	}
	if err := w.verbatim(r.index.Slice(dist, n), len(r.source)); err != nil {
		return "", nil, err
	}
	return w.out.String(), w.idx.Index(), nil
}

// insertionPoint is the source offset where distilled byte i starts. Past the
// last byte it is the end of the source that byte owns.
func (r *Rewriter) insertionPoint(i int) int {
	n := r.index.Len()
	switch {
	case i < n:
		return r.index.At(i)
	case n > 0:
		return r.index.Extent(n - 1)
	default:
		return len(r.source)
	}
}

// writer accumulates the rewritten source together with its index.
type writer struct {
	src    string
	out    strings.Builder
	idx    mapping.Builder
	cursor int
}

// verbatim copies source up to the offset to, carrying runs along.
func (w *writer) verbatim(runs []mapping.Run, to int) error {
	shift := w.out.Len() - w.cursor
	w.out.WriteString(w.src[w.cursor:to])
	for _, run := range runs {
		if err := w.idx.Add(run.Src+shift, run.Len, run.Tail); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "inconsistent index").Fatal().Build()
		}
	}
	w.cursor = to
	return nil
}

// replacement writes escaped text and maps every character of it onto its
// escaped form.
func (w *writer) replacement(text string, escape func(string) string) error {
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		raw := text[i : i+size]
		esc := escape(raw)
		if len(esc) < size {
			return ferrors.InternalError("escaped text shorter than its input").
				WithContext("text", raw).
				Build()
		}
		pos := w.out.Len()
		w.out.WriteString(esc)
		if err := w.idx.Add(pos, size, len(esc)-size); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "inconsistent index").Fatal().Build()
		}
		i += size
	}
	return nil
}
