package clicmds

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/xhrwatcher/intercept"
	"gitlab.com/xhrwatcher/observers/completion"
	"gitlab.com/xhrwatcher/observers/dump"
	"gitlab.com/xhrwatcher/xhr"
	"gitlab.com/xhrwatcher/xhrw"
)

// WatchFlags configures the watch command
func WatchFlags() []cli.Flag {
	return append(configFlags(),
		&cli.StringSliceFlag{
			Name:  "url",
			Usage: "GET url to issue in addition to the configured requests, may be repeated",
		},
	)
}

// Watch issues the configured requests through an intercepted host and
// reports each one completing with the success status
func Watch(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	for _, u := range cliCtx.StringSlice("url") {
		cfg.Requests = append(cfg.Requests, &xhrw.RequestConfig{Method: "GET", URL: u})
	}
	if len(cfg.Requests) == 0 {
		return errors.New("no requests configured, use --config or --url")
	}

	reporter, closeReporter, err := newReporter(cfg)
	if err != nil {
		return err
	}
	defer closeReporter()

	bctx := newContext(cfg, reporter)
	defer bctx.CtxComplete()

	_, err = watch(bctx)
	return err
}

// watch runs cfg.Requests of bctx and waits for all of them, returning the
// interceptor so callers can inspect failures
func watch(bctx *xhrw.Context) (*intercept.Interceptor, error) {
	cfg := bctx.Config
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}

	host, err := xhr.New(bctx, xhr.WithTimeout(timeout), xhr.WithUserAgent(cfg.UserAgent))
	if err != nil {
		return nil, err
	}

	ic := intercept.New(bctx)
	if err := intercept.AddCallback(ic, host, completion.New(bctx.Reporter, completion.WithStatus(cfg.SuccessStatus))); err != nil {
		return nil, err
	}
	if cfg.Dump {
		ic.Register(dump.New(bctx.Log))
	}
	log.Debug().Str("chain", ChainOf(ic).String()).Msg("interceptor installed")

	for _, r := range cfg.Requests {
		var body []byte
		if r.Body != "" {
			body = []byte(r.Body)
		}
		if _, err := host.Fetch(bctx.Ctx, r.Method, r.URL, r.Headers, body); err != nil {
			log.Error().Err(err).Str("url", r.URL).Msg("failed to issue request")
		}
	}

	waitCtx := bctx.Ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		// all requests run concurrently, leave a little room for listeners
		waitCtx, cancel = context.WithTimeout(bctx.Ctx, timeout+time.Second)
		defer cancel()
	}
	if err := host.Wait(waitCtx); err != nil {
		return ic, errors.Wrap(err, "waiting for requests")
	}

	log.Info().Int("requests", len(cfg.Requests)).Int64("observer_failures", ic.Failures()).Msg("watch complete")
	return ic, nil
}
