package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"lectern/internal/download"
)

// progressSink renders download events as progress bars on a terminal, and
// as plain status lines otherwise.
type progressSink struct {
	mu       sync.Mutex
	out      *os.File
	terminal bool
	bars     map[string]*progressbar.ProgressBar
}

func newProgressSink(out *os.File) *progressSink {
	return &progressSink{
		out:      out,
		terminal: isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()),
		bars:     make(map[string]*progressbar.ProgressBar),
	}
}

func (p *progressSink) Publish(e download.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.terminal {
		switch e.Status {
		case download.StatusPending, download.StatusDownloading:
		default:
			fmt.Fprintf(p.out, "%s: %s", e.Name, e.Status)
			if e.Message != "" {
				fmt.Fprintf(p.out, " (%s)", e.Message)
			}
			fmt.Fprintln(p.out)
		}
		return
	}

	switch e.Status {
	case download.StatusDownloading:
		bar, ok := p.bars[e.TaskID]
		if !ok {
			bar = progressbar.NewOptions64(e.Total,
				progressbar.OptionSetDescription(e.Name),
				progressbar.OptionSetWriter(p.out),
				progressbar.OptionShowBytes(true),
				progressbar.OptionClearOnFinish(),
			)
			p.bars[e.TaskID] = bar
		}
		_ = bar.Set64(e.Downloaded)
	case download.StatusWriting:
		if bar, ok := p.bars[e.TaskID]; ok {
			bar.Describe(e.Name + " (writing)")
		}
	default:
		if e.Status.Terminal() {
			if bar, ok := p.bars[e.TaskID]; ok {
				_ = bar.Finish()
				delete(p.bars, e.TaskID)
			}
			fmt.Fprintf(p.out, "%s: %s", e.Name, e.Status)
			if e.Message != "" {
				fmt.Fprintf(p.out, " (%s)", e.Message)
			}
			fmt.Fprintln(p.out)
		}
	}
}
