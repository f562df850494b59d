package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Avarel/bvr/pkg/config"
	"github.com/Avarel/bvr/pkg/match"
	"github.com/Avarel/bvr/pkg/utils"
)

// export runs the data plane without the terminal front-end: ingest the
// source, apply the filters, stream the filtered lines to stdout.
func export(c *cli.Context) error {
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

	for _, pat := range c.StringSlice("regex") {
		if _, err := sess.AddRegex(pat); err != nil {
			return err
		}
	}
	for _, lit := range c.StringSlice("literal") {
		sess.AddLiteral(lit)
	}
	if c.Bool("intersect") {
		sess.SetMode(match.Intersect)
	}

	<-sess.Done()
	if err := sess.Err(); err != nil {
		return err
	}
	waitMatchers(sess.Matchers())

	it := sess.Export()
	progress, bar := utils.NewProgressBar("exporting", int64(it.Len()), c.Bool("quiet"))
	w := bufio.NewWriter(os.Stdout)
	for {
		row, ok := it.Next()
		if !ok {
			break
		}
		if c.Bool("line-numbers") {
			fmt.Fprintf(w, "%d:%s\n", row.Line+1, row.Text)
		} else {
			fmt.Fprintln(w, row.Text)
		}
		bar.Increment()
	}
	bar.SetTotal(bar.Current(), true)
	progress.Wait()
	return w.Flush()
}

func waitMatchers(ms []*match.Matcher) {
	for {
		done := true
		for _, m := range ms {
			if !m.Complete() {
				done = false
			}
		}
		if done {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func exportFlags() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "write the filtered lines to stdout",
		ArgsUsage: "[FILE]",
		Action:    export,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "regex",
				Aliases: []string{"e"},
				Usage:   "regex filter, may be repeated",
			},
			&cli.StringSliceFlag{
				Name:    "literal",
				Aliases: []string{"F"},
				Usage:   "literal filter, may be repeated",
			},
			&cli.BoolFlag{
				Name:  "intersect",
				Usage: "require all filters to match (default: any)",
			},
			&cli.BoolFlag{
				Name:    "line-numbers",
				Aliases: []string{"n"},
				Usage:   "prefix each line with its line number",
			},
		},
	}
}
