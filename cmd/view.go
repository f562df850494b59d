package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/Avarel/bvr/pkg/config"
	"github.com/Avarel/bvr/pkg/session"
	"github.com/Avarel/bvr/pkg/ui"
	"github.com/Avarel/bvr/pkg/utils"
)

// view is the default action: page a file argument, or capture stdin when
// it is a pipe.
func view(c *cli.Context) error {
	setup(c)
	cfg, err := config.Load(c.String("conf"))
	if err != nil {
		return err
	}
	if c.IsSet("ingest-rate") {
		cfg.IngestRate = c.Int64("ingest-rate")
	}

	sess, err := open(c, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	// the alternate screen owns the terminal; logs must not paint over it
	if c.String("log") == "" {
		utils.DisableLog()
	}
	return ui.Run(sess, cfg)
}

func open(c *cli.Context, cfg config.Config) (*session.Session, error) {
	opt := session.Options{
		SegmentSize:   cfg.SegmentSize,
		CacheSegments: cfg.CacheSegments,
		IngestRate:    cfg.IngestRate,
	}
	if c.Args().Len() >= 1 {
		return session.OpenFile(c.Args().Get(0), opt)
	}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		return nil, errors.New("FILE is needed when stdin is a terminal")
	}
	return session.OpenStream("stdin", os.Stdin, opt), nil
}
