package mapping

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	x := Identity(5)
	assert.Equal(t, 5, x.Len())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, x.Offsets())
	assert.Equal(t, 3, x.At(3))
	assert.Equal(t, 4, x.Extent(3))

	empty := Identity(0)
	assert.Zero(t, empty.Len())
	assert.Empty(t, empty.Runs())
}

func TestIndex_AtPanicsOutOfRange(t *testing.T) {
	x := Identity(2)
	assert.Panics(t, func() { x.At(2) })
	assert.Panics(t, func() { x.Extent(-1) })
}

func TestIndex_Splice(t *testing.T) {
	x := Identity(10)
	require.NoError(t, x.Splice([]Edit{{Start: 2, End: 4, Keep: 1}, {Start: 6, End: 9, Keep: 0}}))

	want := []Run{
		{Dist: 0, Src: 0, Len: 3, Tail: 1},
		{Dist: 3, Src: 4, Len: 2},
		{Dist: 5, Src: 9, Len: 1},
	}
	if diff := cmp.Diff(want, x.Runs()); diff != "" {
		t.Fatalf("runs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 6, x.Len())
	assert.Equal(t, []int{0, 1, 2, 4, 5, 9}, x.Offsets())
	assert.Equal(t, 4, x.Extent(2), "kept byte owns the removed remainder")
	assert.Equal(t, 6, x.Extent(4))
}

func TestIndex_SpliceRejectsBadEdits(t *testing.T) {
	x := Identity(4)
	require.Error(t, x.Splice([]Edit{{Start: 2, End: 5}}))
	require.Error(t, x.Splice([]Edit{{Start: 2, End: 3}, {Start: 1, End: 2}}))
	require.ErrorIs(t, x.Splice([]Edit{{Start: 0, End: 1, Keep: 2}}), ErrGrowingReplacement)
	assert.Equal(t, []int{0, 1, 2, 3}, x.Offsets(), "failed splices leave the index unchanged")
}

func TestIndex_Gaps(t *testing.T) {
	x := Identity(10)
	require.NoError(t, x.Splice([]Edit{{Start: 1, End: 3}, {Start: 5, End: 8, Keep: 1}}))

	assert.Equal(t, [][2]int{{1, 3}}, x.Gaps(0, 10), "bytes owned through a tail are not gaps")
	assert.Equal(t, [][2]int{{1, 3}}, x.Gaps(1, 4))
	assert.Nil(t, x.Gaps(3, 10))
}

func TestIndex_Slice(t *testing.T) {
	x := Identity(6)
	require.NoError(t, x.Splice([]Edit{{Start: 1, End: 3, Keep: 1}}))
	// runs: {0,0,2,1} {2,3,3,0}
	assert.Equal(t, []Run{{Src: 1, Len: 1, Tail: 1}, {Src: 3, Len: 2}}, x.Slice(1, 4))
	assert.Equal(t, []Run{{Src: 0, Len: 1}}, x.Slice(0, 1))
}

func TestBuilder(t *testing.T) {
	var b Builder
	require.NoError(t, b.Add(0, 3, 0))
	require.NoError(t, b.Add(5, 2, 1))
	require.Error(t, b.Add(7, 1, 0), "source byte 7 is owned by the previous run")
	require.NoError(t, b.Add(8, 1, 0))
	require.NoError(t, b.Add(9, 0, 0))

	x := b.Index()
	want := []Run{
		{Dist: 0, Src: 0, Len: 3},
		{Dist: 3, Src: 5, Len: 2, Tail: 1},
		{Dist: 5, Src: 8, Len: 1},
	}
	if diff := cmp.Diff(want, x.Runs()); diff != "" {
		t.Fatalf("runs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 8, x.Extent(4))
}

func TestBuilder_MergesAdjacentRuns(t *testing.T) {
	var b Builder
	require.NoError(t, b.Add(0, 2, 0))
	require.NoError(t, b.Add(2, 2, 0))
	require.NoError(t, b.Add(4, 1, 0))
	assert.Len(t, b.Index().Runs(), 1)
}
