package clicmds

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/xhrwatcher/report"
	"gitlab.com/xhrwatcher/xhrw"
)

const maxLoggedPayload = 512

// GlobalFlags shared by every command
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "loglevel",
			Usage: "trace, debug, info, warn, error",
			Value: "info",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "human readable console logs",
			Value: false,
		},
	}
}

// SetupLogging from the global flags, used as the app's Before hook
func SetupLogging(cliCtx *cli.Context) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cliCtx.String("loglevel")))
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", cliCtx.String("loglevel"))
	}
	zerolog.SetGlobalLevel(level)
	if cliCtx.Bool("pretty") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return nil
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "toml config to use",
			Value: "",
		},
		&cli.IntFlag{
			Name:  "status",
			Usage: "status code a completed request must have to be reported",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "report format: json, msgpack or log",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "file to write reports to, stdout if empty",
		},
		&cli.StringFlag{
			Name:  "timeout",
			Usage: "per request timeout",
		},
		&cli.StringFlag{
			Name:  "useragent",
			Usage: "user agent sent with requests",
		},
		&cli.BoolFlag{
			Name:  "dump",
			Usage: "dump every dispatched request at debug level",
		},
	}
}

// loadConfig reads the toml file if given, flags that were set override it
func loadConfig(cliCtx *cli.Context) (*xhrw.Config, error) {
	cfg := &xhrw.Config{}
	if path := cliCtx.String("config"); path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
		cfg, err = decodeConfig(data)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding config %s", path)
		}
	}

	if cliCtx.IsSet("status") {
		cfg.SuccessStatus = cliCtx.Int("status")
	}
	if cliCtx.IsSet("format") {
		cfg.ReportFormat = cliCtx.String("format")
	}
	if cliCtx.IsSet("report") {
		cfg.ReportFile = cliCtx.String("report")
	}
	if cliCtx.IsSet("timeout") {
		cfg.Timeout = cliCtx.String("timeout")
	}
	if cliCtx.IsSet("useragent") {
		cfg.UserAgent = cliCtx.String("useragent")
	}
	if cliCtx.IsSet("dump") {
		cfg.Dump = cliCtx.Bool("dump")
	}
	cfg.SetDefaults()
	return cfg, nil
}

func decodeConfig(data []byte) (*xhrw.Config, error) {
	cfg := &xhrw.Config{}
	if err := toml.NewDecoder(strings.NewReader(string(data))).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newReporter for the configured format, the returned closer flushes the report file
func newReporter(cfg *xhrw.Config) (xhrw.Reporter, func() error, error) {
	noop := func() error { return nil }
	if strings.ToLower(cfg.ReportFormat) == "log" {
		return report.NewLogReporter(&log.Logger, maxLoggedPayload), noop, nil
	}

	format, err := report.ParseFormat(cfg.ReportFormat)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stdout
	closer := noop
	if cfg.ReportFile != "" {
		f, err := os.Create(cfg.ReportFile)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "creating report file %s", cfg.ReportFile)
		}
		w = f
		closer = f.Close
	}

	stream, err := report.NewStreamReporter(w, format, &log.Logger)
	if err != nil {
		closer()
		return nil, nil, err
	}
	if cfg.ReportFile != "" {
		// keep an eye on what is written to the file
		return report.Multi(stream, report.NewLogReporter(&log.Logger, maxLoggedPayload)), closer, nil
	}
	return stream, closer, nil
}

// cancelOnSignal completes bctx on ctrl-c or SIGTERM
func cancelOnSignal(bctx *xhrw.Context) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			log.Info().Msg("Ctrl-C Pressed, shutting down")
			bctx.CtxComplete()
		case <-bctx.Ctx.Done():
		}
		signal.Stop(c)
	}()
}

func newContext(cfg *xhrw.Config, reporter xhrw.Reporter) *xhrw.Context {
	bctx := xhrw.NewContext(context.Background(), cfg, reporter)
	cancelOnSignal(bctx)
	return bctx
}
