// Package frontmatter locates the YAML block at the top of a Markdown file.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Block is the frontmatter of a document.
type Block struct {
	// Raw is the YAML between the delimiters.
	Raw []byte
	// BodyStart is the offset of the first byte after the closing delimiter.
	// It is zero when the document has no frontmatter.
	BodyStart int
}

// Present reports whether the document had a frontmatter block.
func (b Block) Present() bool { return b.BodyStart > 0 }

// Split finds the `---` delimited YAML block at the start of content.
func Split(content []byte) (Block, error) {
	nl := newline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return Block{}, nil
	}

	start := len(open)
	if bytes.HasPrefix(content[start:], open) {
		return Block{Raw: []byte{}, BodyStart: start + len(open)}, nil
	}

	closing := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closing)
	if idx < 0 {
		return Block{}, ErrMissingClosingDelimiter
	}
	return Block{
		Raw:       content[start : start+idx+len(nl)],
		BodyStart: start + idx + len(closing),
	}, nil
}

// Fields parses the block into a map. An empty block yields an empty map.
func (b Block) Fields() (map[string]any, error) {
	fields := map[string]any{}
	if len(b.Raw) == 0 {
		return fields, nil
	}
	if err := yaml.Unmarshal(b.Raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func newline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
