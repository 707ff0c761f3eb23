package progress

import (
	"fmt"
	"time"

	"github.com/Dyastin-0/lanbyte/core"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
)

func DefaultBar(maxBytes int64, desc string) *progressbar.ProgressBar {
	writer := ansi.NewAnsiStdout()
	return progressbar.NewOptions64(
		maxBytes,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowTotalBytes(true),
		progressbar.OptionShowBytes(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(writer, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// BarFunc drives bar from transfer progress reports.
func BarFunc(bar *progressbar.ProgressBar) core.ProgressFunc {
	return func(done, total uint64) {
		if done < total {
			bar.Set64(int64(done))
			return
		}
		bar.Set64(int64(done))
		bar.Finish()
	}
}
