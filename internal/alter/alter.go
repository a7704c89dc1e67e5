// Package alter queues caller-supplied replacements against a flat text and
// applies them in one pass.
package alter

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

var (
	// ErrOverlap is returned when a queued range intersects an existing one.
	ErrOverlap = errors.New("alteration overlaps a queued alteration")
	// ErrRange is returned for negative or inverted offsets.
	ErrRange = errors.New("invalid alteration range")
	// ErrOutOfBounds is returned at apply time when a range ends beyond the text.
	ErrOutOfBounds = errors.New("alteration range out of bounds")
)

// Alteration replaces text[Start:End] with Text.
//
// Offsets are counted in the unit of the sequence the alteration is applied to:
// runes for distilled text, bytes once converted with ToByteOffsets.
type Alteration struct {
	Start int
	End   int
	Text  string
}

func (a Alteration) String() string {
	return fmt.Sprintf("[%d,%d)->%q", a.Start, a.End, a.Text)
}

// overlaps reports whether one range starts inside the other. Ranges that
// only touch do not overlap. An insertion overlaps a range starting at or
// spanning its offset, but not one ending there.
func (a Alteration) overlaps(b Alteration) bool {
	return (a.Start <= b.Start && b.Start < a.End) || (b.Start <= a.Start && a.Start < b.End)
}

// Buffer holds the pending alterations of one document session.
//
// The zero value is ready to use. A Buffer is not safe for concurrent use.
type Buffer struct {
	entries []Alteration
}

// Add queues a replacement of [start,end) with text.
//
// The buffer is left unchanged when the range is invalid or overlaps an
// already queued alteration. The range is not checked against any text length.
func (b *Buffer) Add(start, end int, text string) error {
	next := Alteration{Start: start, End: end, Text: text}
	if start < 0 || end < 0 || start > end {
		return ferrors.WrapError(ErrRange, ferrors.CategoryValidation, "invalid alteration").
			WithContext("start", start).
			WithContext("end", end).
			Build()
	}
	for _, queued := range b.entries {
		if queued.overlaps(next) {
			return ferrors.WrapError(ErrOverlap, ferrors.CategoryValidation, "alteration rejected").
				WithContext("alteration", next.String()).
				WithContext("queued", queued.String()).
				Build()
		}
	}
	b.entries = append(b.entries, next)
	return nil
}

// Len returns the number of queued alterations.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Sorted returns a copy of the queued alterations in ascending start order.
// Only insertions can share an offset; they keep the order they were queued in.
func (b *Buffer) Sorted() []Alteration {
	out := make([]Alteration, len(b.entries))
	copy(out, b.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Clear drops every queued alteration.
func (b *Buffer) Clear() {
	b.entries = nil
}

// CheckBounds verifies that every alteration fits into a sequence of length n.
func CheckBounds(alts []Alteration, n int) error {
	for _, a := range alts {
		if a.End > n {
			return ferrors.WrapError(ErrOutOfBounds, ferrors.CategoryValidation, "cannot apply alteration").
				WithContext("alteration", a.String()).
				WithContext("length", n).
				Build()
		}
	}
	return nil
}

// Apply replaces the ranges of the sorted, non-overlapping alterations in seq
// and returns the new sequence. expand converts replacement text into elements.
//
// seq is never modified.
func Apply[T any](seq []T, alts []Alteration, expand func(string) []T) ([]T, error) {
	if err := CheckBounds(alts, len(seq)); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(seq))
	cursor := 0
	for _, a := range alts {
		out = append(out, seq[cursor:a.Start]...)
		out = append(out, expand(a.Text)...)
		cursor = a.End
	}
	out = append(out, seq[cursor:]...)
	return out, nil
}

// PatchString applies rune-offset alterations to text.
func PatchString(text string, alts []Alteration) (string, error) {
	if len(alts) == 0 {
		return text, nil
	}
	out, err := Apply([]rune(text), alts, func(s string) []rune { return []rune(s) })
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ToByteOffsets converts rune-offset alterations into byte offsets of text.
// The alterations must be sorted.
func ToByteOffsets(text string, alts []Alteration) ([]Alteration, error) {
	if err := CheckBounds(alts, utf8.RuneCountInString(text)); err != nil {
		return nil, err
	}

	out := make([]Alteration, len(alts))
	runeIdx, byteIdx := 0, 0
	advance := func(to int) int {
		for runeIdx < to {
			_, size := utf8.DecodeRuneInString(text[byteIdx:])
			byteIdx += size
			runeIdx++
		}
		return byteIdx
	}
	for i, a := range alts {
		out[i] = Alteration{Start: advance(a.Start), End: advance(a.End), Text: a.Text}
	}
	return out, nil
}
