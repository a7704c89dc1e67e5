package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/exposetext/internal/alter"
	"git.home.luguber.info/inful/exposetext/internal/format"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

const sample = "---\ntitle: Demo\n---\n" +
	"# Heading\n\n" +
	"Some **bold** text and a [link](http://x.y).\n\n" +
	"```\ncode <b>\n```\n\n" +
	"- one\n- two\\*\n"

const sampleText = "Heading\nSome bold text and a link.\ncode <b>\none\ntwo*"

func load(t *testing.T, raw string) *Document {
	t.Helper()
	f, err := New([]byte(raw), format.Options{})
	require.NoError(t, err)
	return f.(*Document)
}

func TestText(t *testing.T) {
	d := load(t, sample)
	assert.Equal(t, sampleText, d.Text())

	out, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t, sample, string(out))

	fields, err := d.Frontmatter()
	require.NoError(t, err)
	assert.Equal(t, "Demo", fields["title"])
}

func TestAlterations(t *testing.T) {
	tests := []struct {
		name     string
		alt      alter.Alteration
		wantText string
		want     string
	}{
		{
			name:     "inside emphasis",
			alt:      alter.Alteration{Start: 13, End: 17, Text: "strong"},
			wantText: "Heading\nSome strong text and a link.",
			want:     "Some **strong** text and a [link](http://x.y).",
		},
		{
			name:     "across emphasis",
			alt:      alter.Alteration{Start: 13, End: 22, Text: "fat words"},
			wantText: "Heading\nSome fat words and a link.",
			want:     "Some **fat words** and a [link](http://x.y).",
		},
		{
			name:     "escaped link text",
			alt:      alter.Alteration{Start: 29, End: 33, Text: "a*b"},
			wantText: "Heading\nSome bold text and a a*b.",
			want:     `Some **bold** text and a [a\*b](http://x.y).`,
		},
		{
			name:     "frontmatter is kept",
			alt:      alter.Alteration{Start: 0, End: 0, Text: "New "},
			wantText: "New Heading\nSome bold text and a link.",
			want:     "---\ntitle: Demo\n---\n# New Heading\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := load(t, sample)
			require.NoError(t, d.AddAlter(tt.alt.Start, tt.alt.End, tt.alt.Text))
			require.NoError(t, d.ApplyAlters())
			assert.Contains(t, d.Text(), tt.wantText)

			out, err := d.Bytes()
			require.NoError(t, err)
			assert.Contains(t, string(out), tt.want)
			assert.Equal(t, d.Text(), load(t, string(out)).Text())
		})
	}
}

func TestEditAcrossListItems(t *testing.T) {
	d := load(t, "- one\n- two\n")
	assert.Equal(t, "one\ntwo", d.Text())

	require.NoError(t, d.AddAlter(0, 7, "z"))
	require.NoError(t, d.ApplyAlters())
	assert.Equal(t, "z", d.Text())

	out, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "- z\n- \n", string(out))
	assert.Equal(t, d.Text(), load(t, string(out)).Text())
}

func TestEscapesAndReferencesOwnTheirSource(t *testing.T) {
	src := `a\*b&amp;c`
	d := &distiller{src: []byte(src)}
	require.NoError(t, d.segment(0, len(src), false))
	assert.Equal(t, "a*b&c", d.text.String())

	idx := d.idx.Index()
	assert.Equal(t, 1, idx.At(1))
	assert.Equal(t, 3, idx.Extent(1))
	assert.Equal(t, 4, idx.At(3))
	assert.Equal(t, 9, idx.Extent(3))
	assert.Equal(t, 9, idx.At(4))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `\*a\_b\[c\] \# 1 \& 2\!`, Escape(`*a_b[c] # 1 & 2!`))
}

func TestErrors(t *testing.T) {
	_, err := New([]byte("Gr\xfc\xdfe"), format.Options{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryEncoding))

	_, err = New([]byte("---\ntitle: x\n# Title\n"), format.Options{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFormat))
}

func TestFingerprint(t *testing.T) {
	d := load(t, sample)
	fp, err := d.Fingerprint()
	require.NoError(t, err)
	assert.NotEmpty(t, fp)

	stale, err := d.FingerprintStale()
	require.NoError(t, err)
	assert.False(t, stale, "no fingerprint field")

	withFP := "---\ntitle: Demo\nfingerprint: \"" + fp + "\"\n---\n" + sample[len("---\ntitle: Demo\n---\n"):]
	d = load(t, withFP)
	again, err := d.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp, again, "the fingerprint field is not hashed")

	stale, err = d.FingerprintStale()
	require.NoError(t, err)
	assert.False(t, stale)

	require.NoError(t, d.AddAlter(0, 7, "Title"))
	require.NoError(t, d.ApplyAlters())
	stale, err = d.FingerprintStale()
	require.NoError(t, err)
	assert.True(t, stale)
}
