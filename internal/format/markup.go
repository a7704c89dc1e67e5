package format

import (
	"git.home.luguber.info/inful/exposetext/internal/alter"
	"git.home.luguber.info/inful/exposetext/internal/mapping"
	"git.home.luguber.info/inful/exposetext/internal/rewrite"
)

// Markup is the shared state of formats whose text is distilled from a markup
// string. Adapters embed it and add serialization.
type Markup struct {
	Queue
	source string
	text   string
	index  *mapping.Index
	opts   rewrite.Options
}

// NewMarkup wraps a finished distillation of source.
func NewMarkup(source, text string, idx *mapping.Index, opts rewrite.Options) *Markup {
	return &Markup{source: source, text: text, index: idx, opts: opts}
}

// FromMapper wraps the result of m.
func FromMapper(m *mapping.Mapper, opts rewrite.Options) *Markup {
	return NewMarkup(m.Source(), m.Text(), m.Index(), opts)
}

// Text returns the distilled text.
func (m *Markup) Text() string { return m.text }

// Source returns the current markup.
func (m *Markup) Source() string { return m.source }

// Index returns the distilled→markup index.
func (m *Markup) Index() *mapping.Index { return m.index }

// ApplyAlters rewrites the markup and patches the text. Nothing changes
// unless both succeed.
func (m *Markup) ApplyAlters() error {
	alts := m.Sorted()
	if len(alts) == 0 {
		return nil
	}
	text, err := alter.PatchString(m.text, alts)
	if err != nil {
		return err
	}
	byteAlts, err := alter.ToByteOffsets(m.text, alts)
	if err != nil {
		return err
	}
	source, idx, err := rewrite.New(m.source, m.index, m.opts).Apply(byteAlts)
	if err != nil {
		return err
	}
	m.source, m.text, m.index = source, text, idx
	m.Reset()
	return nil
}
