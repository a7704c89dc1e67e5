package commands

import (
	"fmt"

	"git.home.luguber.info/inful/exposetext/internal/document"
)

// FormatsCmd implements the 'formats' command.
type FormatsCmd struct{}

func (f *FormatsCmd) Run(g *Global, _ *CLI) error {
	for _, key := range document.DefaultRegistry().Keys() {
		if _, err := fmt.Fprintln(g.Out, key); err != nil {
			return err
		}
	}
	return nil
}
