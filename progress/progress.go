package progress

import (
	"io"
	"sync"

	"github.com/Dyastin-0/lanbyte/core"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress renders one bar per concurrent transfer.
type Progress struct {
	mu       sync.Mutex
	progress *mpb.Progress
	opts     []mpb.ContainerOption
}

func New(opts ...mpb.ContainerOption) *Progress {
	return &Progress{
		progress: mpb.New(opts...),
		opts:     opts,
	}
}

// NewWithOutput renders bars to w, nil discards them.
func NewWithOutput(w io.Writer) *Progress {
	if w == nil {
		w = io.Discard
	}
	return New(mpb.WithOutput(w))
}

func (p *Progress) NewBar(n int64, text string) *mpb.Bar {
	p.mu.Lock()
	defer p.mu.Unlock()

	bar := p.progress.AddBar(n,
		mpb.PrependDecorators(
			decor.Name(text, decor.WC{W: 12, C: decor.DindentRight}),
			decor.CountersKibiByte(" % .2f / % .2f", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Elapsed(1, decor.WC{W: 12, C: decor.DindentRight}),
		),
		mpb.BarRemoveOnComplete(),
	)

	return bar
}

// Track adds a bar sized for the offer and returns the callback that
// drives it. An empty file completes its bar on the first report.
func (p *Progress) Track(remote string, offer core.FileOffer) core.ProgressFunc {
	bar := p.NewBar(int64(offer.Size), offer.Filename)

	return func(done, total uint64) {
		if total == 0 {
			bar.SetTotal(0, true)
			return
		}
		bar.SetCurrent(int64(done))
	}
}

func (p *Progress) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress.Wait()
}

func (p *Progress) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.progress != nil {
		p.progress.Wait()
	}

	p.progress = mpb.New(p.opts...)
}
