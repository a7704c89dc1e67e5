package commands

import (
	"fmt"
)

// TextCmd implements the 'text' command.
type TextCmd struct {
	Path   string `arg:"" help:"Document to read"`
	Format string `short:"f" help:"Format key overriding the file extension, for example .md"`
}

func (t *TextCmd) Run(g *Global, root *CLI) error {
	s, err := root.session()
	if err != nil {
		return err
	}
	defer s.close()
	d, err := s.open(t.Path, t.Format)
	if err == nil {
		_, err = fmt.Fprintln(g.Out, d.Text())
	}
	return s.finish("text", err)
}
