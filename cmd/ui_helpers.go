// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/ncihtan/htan-claude/internal/terminal"
	"github.com/ncihtan/htan-claude/internal/transfer"
)

var spinnerFrames = []string{"-", "\\", "|", "/"}

// startInlineSpinner draws frames followed by text on a single line of w
// until the returned function is called. The line is cleared on stop.
// Nothing is drawn when w is not a terminal.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	if f, ok := w.(*os.File); !ok || !terminal.IsTerminal(f) {
		return func() {}
	}
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", frames[i%len(frames)], text)
				i++
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

// barProgress renders a download as a pterm progress bar on stderr. When
// stderr is not a terminal or the size is unknown nothing is drawn.
type barProgress struct {
	bar  *pterm.ProgressbarPrinter
	seen int64
}

func newProgress() transfer.Progress {
	return &barProgress{}
}

func (p *barProgress) Start(name string, total int64) {
	if total <= 0 || !terminal.IsTerminal(os.Stderr) {
		return
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(int(total)).
		WithTitle(name).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return
	}
	p.bar = bar
}

func (p *barProgress) Update(downloaded, _ int64) {
	if p.bar == nil || downloaded <= p.seen {
		return
	}
	p.bar.Add(int(downloaded - p.seen))
	p.seen = downloaded
}

func (p *barProgress) Done(error) {
	if p.bar != nil {
		_, _ = p.bar.Stop()
	}
}
