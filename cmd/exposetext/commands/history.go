package commands

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/exposetext/internal/eventstore"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit   int    `short:"n" default:"20" help:"Number of entries to show"`
	Session string `help:"Only show entries of this session"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	s, err := root.session()
	if err != nil {
		return err
	}
	defer s.close()
	if s.journal == nil {
		return ferrors.ConfigError("journal.path is not configured").UserAction().Build()
	}

	ctx := context.Background()
	var events []eventstore.Event
	if h.Session != "" {
		events, err = s.journal.GetBySession(ctx, h.Session)
	} else {
		events, err = s.journal.Recent(ctx, h.Limit)
	}
	if err != nil {
		return err
	}
	for _, e := range events {
		if _, err := fmt.Fprintln(g.Out, formatEvent(e)); err != nil {
			return err
		}
	}
	return nil
}

func formatEvent(e eventstore.Event) string {
	line := fmt.Sprintf("%s  %-16s  %-5s  %s", e.Timestamp.UTC().Format(time.RFC3339), e.Type, e.Format, e.Path)
	a, err := e.Applied()
	if err != nil {
		return line + "  " + e.SessionID
	}
	if a.Output != "" && a.Output != e.Path {
		line += " -> " + a.Output
	}
	line += fmt.Sprintf("  %d alterations", a.Alterations)
	if a.Error != "" {
		line += "  error: " + a.Error
	}
	return line + "  " + e.SessionID
}
