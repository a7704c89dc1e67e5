package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/exposetext/internal/format"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:r><w:t>German paragraph</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t xml:space="preserve">1. Glücklich </w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>macht mich</w:t></w:r>` +
	`<w:r><w:br/><w:t>&amp; more</w:t></w:r></w:p>` +
	`</w:body></w:document>`

const wantText = "German paragraph\n1. Glücklich macht mich\n& more"

func buildDocx(t *testing.T, document []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypes)},
		{DocumentPart, document},
		{"word/media/image1.png", []byte{0x89, 'P', 'N', 'G'}},
	} {
		w, err := zw.Create(part.name)
		require.NoError(t, err)
		_, err = w.Write(part.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readParts(t *testing.T, raw []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	parts := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		parts[f.Name] = string(data)
	}
	return parts
}

func load(t *testing.T, raw []byte) format.Format {
	t.Helper()
	f, err := New(raw, format.Options{})
	require.NoError(t, err)
	return f
}

func TestText(t *testing.T) {
	f := load(t, buildDocx(t, []byte(documentXML)))
	assert.Equal(t, wantText, f.Text())
}

func TestUnalteredRoundTripIsByteIdentical(t *testing.T) {
	raw := buildDocx(t, []byte(documentXML))
	f := load(t, raw)
	require.NoError(t, f.ApplyAlters())
	out, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestAlterations(t *testing.T) {
	raw := buildDocx(t, []byte(documentXML))
	f := load(t, raw)
	require.NoError(t, f.AddAlter(0, 6, "Deutscher"))
	require.NoError(t, f.AddAlter(20, 29, "Froh"))
	require.NoError(t, f.AddAlter(41, 42, "and"))
	require.NoError(t, f.ApplyAlters())
	assert.Equal(t, "Deutscher paragraph\n1. Froh macht mich\nand more", f.Text())

	out, err := f.Bytes()
	require.NoError(t, err)
	parts := readParts(t, out)
	assert.Contains(t, parts[DocumentPart], `<w:t>Deutscher paragraph</w:t>`)
	assert.Contains(t, parts[DocumentPart], `<w:t xml:space="preserve">1. Froh </w:t>`)
	assert.Contains(t, parts[DocumentPart], `<w:t>and more</w:t>`)

	before := readParts(t, raw)
	assert.Equal(t, before["[Content_Types].xml"], parts["[Content_Types].xml"])
	assert.Equal(t, before["word/media/image1.png"], parts["word/media/image1.png"])

	reloaded := load(t, out)
	assert.Equal(t, f.Text(), reloaded.Text())
}

func TestEscaping(t *testing.T) {
	f := load(t, buildDocx(t, []byte(documentXML)))
	require.NoError(t, f.AddAlter(0, 6, `<R&D's>`))
	require.NoError(t, f.ApplyAlters())

	out, err := f.Bytes()
	require.NoError(t, err)
	assert.Contains(t, readParts(t, out)[DocumentPart], `<w:t>&lt;R&amp;D&apos;s&gt; paragraph</w:t>`)
	assert.Equal(t, `<R&D's> paragraph`+"\n1. Glücklich macht mich\n& more", load(t, out).Text())
}

func TestAlterationAcrossParagraphsKeepsStructure(t *testing.T) {
	f := load(t, buildDocx(t, []byte(documentXML)))
	require.NoError(t, f.AddAlter(7, 19, "Absatz:"))
	require.NoError(t, f.ApplyAlters())
	assert.Equal(t, "German Absatz: Glücklich macht mich\n& more", f.Text())

	out, err := f.Bytes()
	require.NoError(t, err)
	doc := readParts(t, out)[DocumentPart]
	assert.Contains(t, doc, "<w:t>German Absatz:</w:t>\n</w:r>\n</w:p>\n<w:p>\n<w:r>\n<w:t xml:space=\"preserve\"> Glücklich </w:t>")
	assert.Equal(t, "German Absatz:\n Glücklich macht mich\n& more", load(t, out).Text())
}

func TestLegacyEncoding(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"windows-1252\"?>\n" +
		"<w:document><w:body><w:p><w:r><w:t>Gr\xfc\xdfe</w:t></w:r></w:p></w:body></w:document>"
	f := load(t, buildDocx(t, []byte(doc)))
	assert.Equal(t, "Grüße", f.Text())
	assert.Equal(t, "windows-1252", f.(*Document).Encoding())

	require.NoError(t, f.AddAlter(0, 5, "Maß"))
	require.NoError(t, f.ApplyAlters())
	out, err := f.Bytes()
	require.NoError(t, err)
	assert.Contains(t, readParts(t, out)[DocumentPart], "<w:t>Ma\xdf</w:t>")
}

func TestInvalidPackages(t *testing.T) {
	_, err := New([]byte("not a zip"), format.Options{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFormat))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("word/other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = New(buf.Bytes(), format.Options{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFormat))
}

func TestEscapeXML(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; &quot;c&quot; &apos;d&apos;", EscapeXML(`a <b> & "c" 'd'`))
}
