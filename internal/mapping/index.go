// Package mapping keeps the correspondence between distilled text and the
// source it was extracted from.
//
// An Index maps every byte of the distilled text to the source byte it came
// from. The mapping is stored as runs of consecutive bytes so that identity
// stretches of any length cost a single entry, and a whole pass of span
// removals is applied in one sweep over the runs.
package mapping

import (
	"fmt"
	"sort"
)

// Run maps distilled bytes [Dist, Dist+Len) onto source bytes [Src, Src+Len).
//
// Tail counts extra source bytes owned by the last byte of the run. It is
// non-zero when a longer source span was collapsed into shorter text, e.g.
// the entity "&amp;" distilled to "&".
type Run struct {
	Dist int
	Src  int
	Len  int
	Tail int
}

// end is one past the last source byte owned by the run.
func (r Run) end() int {
	return r.Src + r.Len + r.Tail
}

// Edit describes the removal of distilled bytes [Start, End) of which the
// first Keep bytes survive (holding replacement text).
type Edit struct {
	Start int
	End   int
	Keep  int
}

// Index is the distilled→source offset mapping. The zero value is an empty index.
type Index struct {
	runs []Run
	size int
}

// Identity returns the index of a text that is its own source.
func Identity(n int) *Index {
	if n == 0 {
		return &Index{}
	}
	return &Index{runs: []Run{{Dist: 0, Src: 0, Len: n}}, size: n}
}

// Len returns the number of mapped distilled bytes.
func (x *Index) Len() int {
	return x.size
}

// Runs returns a copy of the runs.
func (x *Index) Runs() []Run {
	out := make([]Run, len(x.runs))
	copy(out, x.runs)
	return out
}

func (x *Index) find(i int) int {
	return sort.Search(len(x.runs), func(k int) bool {
		return x.runs[k].Dist+x.runs[k].Len > i
	})
}

// At returns the source offset of distilled byte i.
func (x *Index) At(i int) int {
	if i < 0 || i >= x.size {
		panic(fmt.Sprintf("mapping: offset %d out of range [0,%d)", i, x.size))
	}
	r := x.runs[x.find(i)]
	return r.Src + i - r.Dist
}

// Extent returns one past the last source byte owned by distilled byte i.
func (x *Index) Extent(i int) int {
	if i < 0 || i >= x.size {
		panic(fmt.Sprintf("mapping: offset %d out of range [0,%d)", i, x.size))
	}
	r := x.runs[x.find(i)]
	if i == r.Dist+r.Len-1 {
		return r.end()
	}
	return r.Src + i - r.Dist + 1
}

// Offsets expands the index into one source offset per distilled byte.
func (x *Index) Offsets() []int {
	out := make([]int, 0, x.size)
	for _, r := range x.runs {
		for k := 0; k < r.Len; k++ {
			out = append(out, r.Src+k)
		}
	}
	return out
}

// Gaps returns the source ranges inside [from, to) that no distilled byte owns.
func (x *Index) Gaps(from, to int) [][2]int {
	var gaps [][2]int
	cursor := from
	k := sort.Search(len(x.runs), func(k int) bool { return x.runs[k].end() > from })
	for ; k < len(x.runs) && cursor < to; k++ {
		r := x.runs[k]
		if r.Src >= to {
			break
		}
		if r.Src > cursor {
			gaps = append(gaps, [2]int{cursor, r.Src})
		}
		if e := r.end(); e > cursor {
			cursor = e
		}
	}
	if cursor < to {
		gaps = append(gaps, [2]int{cursor, to})
	}
	return gaps
}

// Slice returns the runs covering distilled bytes [from, to), clipped to the
// range. Dist is left zero; Builder assigns it when the runs are appended.
func (x *Index) Slice(from, to int) []Run {
	var out []Run
	for k := x.find(from); k < len(x.runs) && from < to; k++ {
		r := x.runs[k]
		off := from - r.Dist
		n := min(r.Len-off, to-from)
		piece := Run{Src: r.Src + off, Len: n}
		if off+n == r.Len {
			piece.Tail = r.Tail
		}
		out = append(out, piece)
		from += n
	}
	return out
}

// Splice removes the edited spans from the index in a single sweep. Edits
// must be sorted, non-overlapping and satisfy Keep <= End-Start.
//
// The first Keep bytes of an edited span keep their source offsets, the rest
// of the span disappears, and the last kept byte takes over the source extent
// of the span's last byte.
func (x *Index) Splice(edits []Edit) error {
	if len(edits) == 0 {
		return nil
	}
	extents := make([]int, len(edits))
	prev := 0
	for k, e := range edits {
		if e.Start < prev || e.Start > e.End || e.End > x.size {
			return fmt.Errorf("mapping: edit [%d,%d) out of order or range", e.Start, e.End)
		}
		if e.Keep < 0 || e.Keep > e.End-e.Start {
			return ErrGrowingReplacement
		}
		if e.Keep > 0 {
			extents[k] = x.Extent(e.End - 1)
		}
		prev = e.End
	}

	b := &Builder{}
	from := 0
	for k, e := range edits {
		b.appendRuns(x.Slice(from, e.Start+e.Keep))
		if e.Keep > 0 {
			b.absorb(extents[k])
		}
		from = e.End
	}
	b.appendRuns(x.Slice(from, x.size))

	x.runs, x.size = b.runs, b.size
	return nil
}

// Builder assembles an Index from runs appended in source order.
type Builder struct {
	runs []Run
	size int
}

// Add maps the next n distilled bytes onto source [src, src+n) with tail
// extra source bytes owned by the last one.
func (b *Builder) Add(src, n, tail int) error {
	if n <= 0 {
		return nil
	}
	if len(b.runs) > 0 && src < b.runs[len(b.runs)-1].end() {
		last := b.runs[len(b.runs)-1]
		return fmt.Errorf("mapping: source offset %d precedes end of previous run %d", src, last.end())
	}
	b.push(Run{Src: src, Len: n, Tail: tail})
	return nil
}

// Index returns the assembled index. The builder must not be used afterwards.
func (b *Builder) Index() *Index {
	return &Index{runs: b.runs, size: b.size}
}

func (b *Builder) appendRuns(runs []Run) {
	for _, r := range runs {
		b.push(r)
	}
}

func (b *Builder) push(r Run) {
	r.Dist = b.size
	b.size += r.Len
	if n := len(b.runs); n > 0 {
		last := &b.runs[n-1]
		if last.Tail == 0 && last.Src+last.Len == r.Src {
			last.Len += r.Len
			last.Tail = r.Tail
			return
		}
	}
	b.runs = append(b.runs, r)
}

// absorb extends the source ownership of the last appended byte up to end.
func (b *Builder) absorb(end int) {
	if len(b.runs) == 0 {
		return
	}
	last := &b.runs[len(b.runs)-1]
	if tail := end - (last.Src + last.Len); tail > last.Tail {
		last.Tail = tail
	}
}
