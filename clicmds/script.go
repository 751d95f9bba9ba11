package clicmds

import (
	"io/ioutil"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/xhrwatcher/intercept"
	"gitlab.com/xhrwatcher/jsrt"
	"gitlab.com/xhrwatcher/observers/completion"
	"gitlab.com/xhrwatcher/xhr"
)

// ScriptFlags configures the script command
func ScriptFlags() []cli.Flag {
	return append(configFlags(),
		&cli.StringFlag{
			Name:     "file",
			Usage:    "userscript to run",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "goreport",
			Usage: "also report completed requests from go, in addition to the script's own callbacks",
			Value: false,
		},
	)
}

// Script runs a userscript in the JS host and waits for every request it started
func Script(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}

	fileName := cliCtx.String("file")
	src, err := ioutil.ReadFile(fileName)
	if err != nil {
		return errors.Wrapf(err, "reading script %s", fileName)
	}

	reporter, closeReporter, err := newReporter(cfg)
	if err != nil {
		return err
	}
	defer closeReporter()

	bctx := newContext(cfg, reporter)
	defer bctx.CtxComplete()

	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return err
	}

	ic := intercept.New(bctx)
	if cliCtx.Bool("goreport") {
		ic.Register(completion.New(reporter, completion.WithStatus(cfg.SuccessStatus), completion.WithHostName("jsrt")))
	}

	rt, err := jsrt.New(bctx, ic, xhr.WithTimeout(timeout), xhr.WithUserAgent(cfg.UserAgent))
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.RunScript(filepath.Base(fileName), string(src))
	if err != nil {
		return err
	}
	log.Debug().Interface("result", result).Msg("script evaluated")

	if err := rt.Wait(bctx.Ctx); err != nil {
		return errors.Wrap(err, "waiting for script requests")
	}
	log.Info().Int64("observer_failures", ic.Failures()).Msg("script complete")
	return nil
}
