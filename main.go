package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/xhrwatcher/clicmds"
)

func main() {
	app := cli.NewApp()
	app.Name = "xhrwatcher"
	app.Version = "0.1"
	app.Usage = "Observes XMLHttpRequest style requests and reports their responses"
	app.Flags = clicmds.GlobalFlags()
	app.Before = clicmds.SetupLogging
	app.Commands = []*cli.Command{
		{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "issue configured requests through an intercepted host",
			Action:  clicmds.Watch,
			Flags:   clicmds.WatchFlags(),
		},
		{
			Name:    "script",
			Aliases: []string{"s"},
			Usage:   "run a userscript in the javascript host",
			Action:  clicmds.Script,
			Flags:   clicmds.ScriptFlags(),
		},
		{
			Name:    "browse",
			Aliases: []string{"b"},
			Usage:   "watch the requests of a page in chrome",
			Action:  clicmds.Browse,
			Flags:   clicmds.BrowseFlags(),
		},
		{
			Name:    "chain",
			Aliases: nil,
			Usage:   "print the interception chain as DOT",
			Action:  clicmds.Chain,
			Flags:   clicmds.ChainFlags(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("xhrwatcher failed")
	}
}
