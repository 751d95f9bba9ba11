package clicmds

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/xhrwatcher/browser"
)

// BrowseFlags configures the browse command
func BrowseFlags() []cli.Flag {
	return append(configFlags(),
		&cli.StringFlag{
			Name:     "url",
			Usage:    "page to open",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "chrome",
			Usage: "path to chrome, searched for if empty",
		},
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "stop after this long, 0 runs until interrupted",
			Value: 0,
		},
		&cli.StringFlag{
			Name:  "binding",
			Usage: "name of the runtime binding the page reports through",
			Value: browser.DefaultBinding,
		},
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "run chrome headless",
			Value: true,
		},
	)
}

// Browse opens the url in chrome with the interception script and reports
// completed requests until interrupted or the duration elapsed
func Browse(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	if cliCtx.IsSet("chrome") {
		cfg.ChromePath = cliCtx.String("chrome")
	}

	reporter, closeReporter, err := newReporter(cfg)
	if err != nil {
		return err
	}
	defer closeReporter()

	bctx := newContext(cfg, reporter)
	defer bctx.CtxComplete()

	leaser := browser.NewLeaser(cfg.ChromePath)
	if cliCtx.Bool("headless") {
		leaser.SetHeadless()
	}
	defer leaser.Cleanup()

	b, port, err := leaser.Acquire()
	if err != nil {
		return err
	}
	defer leaser.Return(port)

	tab, err := b.NewTab()
	if err != nil {
		return errors.Wrap(err, "opening tab")
	}

	w, err := browser.Watch(bctx, tab,
		browser.WithBinding(cliCtx.String("binding")),
		browser.WithStatus(cfg.SuccessStatus))
	if err != nil {
		return err
	}
	if err := w.Navigate(bctx.Ctx, cliCtx.String("url")); err != nil {
		return err
	}
	log.Info().Str("url", cliCtx.String("url")).Msg("watching page")

	if d := cliCtx.Duration("duration"); d > 0 {
		select {
		case <-time.After(d):
		case <-bctx.Ctx.Done():
		}
	} else {
		<-bctx.Ctx.Done()
	}

	log.Info().Int64("reported", w.Reported()).Msg("browse complete")
	return nil
}
