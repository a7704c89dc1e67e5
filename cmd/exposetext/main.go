package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/exposetext/cmd/exposetext/commands"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser, err := kong.New(cli,
		kong.Name("exposetext"),
		kong.Description("Expose the plain text of documents and write text alterations back into them."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(os.Args[1:])
	if err == nil {
		err = ctx.Run(&commands.Global{Out: os.Stdout}, cli)
	} else if !ferrors.IsClassified(err) {
		parser.FatalIfErrorf(err)
	}
	os.Exit(ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err))
}
