package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// progress reports done/total counts. On a terminal it redraws a single
// line; otherwise it prints a line per completed tenth.
type progress struct {
	w          io.Writer
	label      string
	terminal   bool
	width      int
	lastDecile int
}

func newProgress(w io.Writer, label string) *progress {
	p := &progress{w: w, label: label, lastDecile: -1}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.terminal = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			p.width = width
		}
	}
	return p
}

// Update is not safe for concurrent use; callers serialize it.
func (p *progress) Update(done, total int) {
	if total <= 0 {
		return
	}
	pct := done * 100 / total
	line := fmt.Sprintf("%s %d/%d [%3d%%]", p.label, done, total, pct)

	if p.terminal {
		if p.width > 0 && len(line) > p.width {
			line = line[:p.width]
		}
		fmt.Fprintf(p.w, "\r%s", line)
		if done >= total {
			fmt.Fprintln(p.w)
		}
		return
	}

	decile := pct / 10
	if decile == p.lastDecile {
		return
	}
	p.lastDecile = decile
	fmt.Fprintln(p.w, line)
}
