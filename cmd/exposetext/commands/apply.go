package commands

import (
	"context"
	"fmt"
	"log/slog"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/logfields"
	"git.home.luguber.info/inful/exposetext/internal/plan"
)

// ApplyCmd implements the 'apply' command.
type ApplyCmd struct {
	Path      string   `arg:"" help:"Document to alter"`
	Plan      string   `short:"p" help:"Alteration plan (YAML)"`
	Alter     []string `short:"a" sep:"none" help:"Alteration as start:end:text, offsets in characters of the text (repeatable)"`
	Output    string   `short:"o" help:"Write the altered document here ('-' for stdout)"`
	InPlace   bool     `short:"i" name:"in-place" help:"Overwrite the input document"`
	Format    string   `short:"f" help:"Format key overriding the file extension, for example .md"`
	PrintText bool     `name:"print-text" help:"Print the altered text"`
}

func (a *ApplyCmd) Run(g *Global, root *CLI) error {
	output, err := a.output()
	if err != nil {
		return err
	}
	p, err := a.plan()
	if err != nil {
		return err
	}
	s, err := root.session()
	if err != nil {
		return err
	}
	defer s.close()

	d, n, err := s.apply(context.Background(), a.Path, a.Format, p, output, g.Out)
	if err == nil {
		slog.Info("Alterations applied", logfields.Path(a.Path), logfields.Alterations(n), slog.String("output", output))
		if a.PrintText {
			_, err = fmt.Fprintln(g.Out, d.Text())
		}
	}
	return s.finish("apply", err)
}

func (a *ApplyCmd) output() (string, error) {
	switch {
	case a.InPlace && a.Output != "":
		return "", ferrors.ValidationError("--output and --in-place are mutually exclusive").Build()
	case a.InPlace:
		return a.Path, nil
	case a.Output != "":
		if a.PrintText && a.Output == "-" {
			return "", ferrors.ValidationError("--print-text cannot be combined with --output -").Build()
		}
		return a.Output, nil
	default:
		return "", ferrors.ValidationError("one of --output or --in-place is required").Build()
	}
}

// plan merges the plan file with the alterations given as flags.
func (a *ApplyCmd) plan() (*plan.Plan, error) {
	p := &plan.Plan{}
	if a.Plan != "" {
		var err error
		if p, err = plan.Load(a.Plan); err != nil {
			return nil, err
		}
	}
	for _, raw := range a.Alter {
		alt, err := plan.ParseAlteration(raw)
		if err != nil {
			return nil, err
		}
		p.Alterations = append(p.Alterations, alt)
	}
	if len(p.Alterations) == 0 && len(p.Replacements) == 0 {
		return nil, ferrors.ValidationError("nothing to apply: give --plan or --alter").Build()
	}
	return p, nil
}
