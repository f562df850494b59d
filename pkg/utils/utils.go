package utils

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NewProgressBar inits a progress bar with a title at its head. The bar
// draws on stderr, leaving stdout to the data, and is invisible when stderr
// is not a terminal or quiet is set.
func NewProgressBar(title string, total int64, quiet bool) (*mpb.Progress, *mpb.Bar) {
	var progress *mpb.Progress
	if !quiet && isatty.IsTerminal(os.Stderr.Fd()) {
		progress = mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	} else {
		progress = mpb.New(mpb.WithWidth(64), mpb.WithOutput(nil))
	}
	bar := progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(title, decor.WCSyncWidth),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WC{W: 5}), "done"),
		),
	)
	return progress, bar
}
