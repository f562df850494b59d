package main

import (
	"os"

	"github.com/google/gops/agent"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Avarel/bvr/pkg/utils"
	"github.com/Avarel/bvr/pkg/version"
)

var logger = utils.GetLogger("bvr")

func main() {
	cli.VersionFlag = &cli.BoolFlag{
		Name: "version", Aliases: []string{"V"},
		Usage: "print only the version",
	}
	app := &cli.App{
		Name:      "bvr",
		Usage:     "a pager for very large logs and growing streams",
		Version:   version.Version(),
		ArgsUsage: "[FILE]",
		Flags:     globalFlags(),
		Action:    view,
		Commands: []*cli.Command{
			exportFlags(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatalf("%s", err)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "conf",
			Usage: "path of the config file",
		},
		&cli.StringFlag{
			Name:  "log",
			Usage: "write logs to this file instead of stderr",
		},
		&cli.Int64Flag{
			Name:  "ingest-rate",
			Usage: "cap stream ingestion in bytes per second",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"debug", "v"},
			Usage:   "enable debug log",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "only warning and errors",
		},
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "enable trace log",
		},
		&cli.BoolFlag{
			Name:  "debug-agent",
			Usage: "start a gops agent for runtime diagnostics",
		},
	}
}

func setup(c *cli.Context) {
	if c.Bool("trace") {
		utils.SetLogLevel(logrus.TraceLevel)
	} else if c.Bool("verbose") {
		utils.SetLogLevel(logrus.DebugLevel)
	} else if c.Bool("quiet") {
		utils.SetLogLevel(logrus.WarnLevel)
	}
	if logf := c.String("log"); logf != "" {
		utils.SetOutFile(logf)
	}
	if c.Bool("debug-agent") {
		go func() {
			if err := agent.Listen(agent.Options{}); err != nil {
				logger.Warnf("debug agent: %s", err)
			}
		}()
	}
}
