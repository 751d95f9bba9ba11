package clicmds

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"

	"github.com/emicklei/dot"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gitlab.com/xhrwatcher/intercept"
)

// ChainFlags configures the chain command
func ChainFlags() []cli.Flag {
	return append(configFlags(),
		&cli.StringFlag{
			Name:  "dot",
			Usage: "write the DOT graph to this file instead of stdout",
			Value: "",
		},
	)
}

// Chain prints how a send travels through the interceptor for the observers
// the watch command would register
func Chain(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}

	names := []string{"completion (status " + strconv.Itoa(cfg.SuccessStatus) + ")"}
	if cfg.Dump {
		names = append(names, "dump")
	}

	g := chainGraph(names, len(cfg.Requests))
	if fileName := cliCtx.String("dot"); fileName != "" {
		if err := ioutil.WriteFile(fileName, []byte(g.String()), 0644); err != nil {
			return errors.Wrapf(err, "writing %s", fileName)
		}
		return nil
	}
	fmt.Fprintln(os.Stdout, g.String())
	return nil
}

// chainGraph of call site -> trampoline -> observers in order -> primitive
func chainGraph(observers []string, requests int) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")

	site := g.Node("send")
	if requests > 0 {
		site.Label(fmt.Sprintf("send (%d configured requests)", requests))
	}
	trampoline := g.Node("trampoline")
	g.Edge(site, trampoline)

	obs := g.Subgraph("observers")
	prev := trampoline
	for i, name := range observers {
		n := obs.Node(strconv.Itoa(i) + ": " + name)
		g.Edge(prev, n, "notify")
		prev = n
	}

	primitive := g.Node("primitive")
	g.Edge(prev, primitive, "forward")
	g.Edge(primitive, site, "error unchanged").Attr("style", "dashed")
	return g
}

// ChainOf renders the graph for a live interceptor
func ChainOf(ic *intercept.Interceptor) *dot.Graph {
	names := make([]string, 0, ic.Registry().Len())
	for i := range ic.Registry().Snapshot() {
		names = append(names, "observer "+strconv.Itoa(i))
	}
	g := chainGraph(names, 0)
	if host := ic.Host(); host != nil {
		g.Node("primitive").Label("primitive (" + host.Name() + ")")
	}
	return g
}
