// Package progress renders file transfer progress for a terminal.
package progress

import (
	"fmt"
	"io"
	"strings"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"
)

// Func receives the number of bytes written so far and the size of the file.
// It is called synchronously on the uploading goroutine.
type Func func(transferred, total int64)

const defaultBarWidth = 30

type Options struct {
	// Bar draws a progress bar in front of the numbers.
	Bar   bool
	Width int
}

// Percent returns transferred/total as a percentage. An empty file counts as
// complete.
func Percent(transferred, total int64) float64 {
	if total <= 0 {
		return 100
	}
	return 100 * float64(transferred) / float64(total)
}

// Format returns the progress line without any line terminator.
func Format(transferred, total int64) string {
	return fmt.Sprintf(
		"Progress: %.2f%%\t Transferred: %s / %s",
		Percent(transferred, total),
		humanize.Bytes(uint64(transferred)),
		humanize.Bytes(uint64(total)),
	)
}

// NewTerminal returns a Func that redraws a single line on w. Intermediate
// updates end in a carriage return so the next one overwrites them; the
// update that reaches the total ends in a newline so it stays on screen.
func NewTerminal(w io.Writer, opts Options) Func {
	var bar *bprogress.Model
	if opts.Bar {
		width := opts.Width
		if width <= 0 {
			width = defaultBarWidth
		}
		m := bprogress.New(
			bprogress.WithDefaultGradient(),
			bprogress.WithWidth(width),
			bprogress.WithoutPercentage(),
		)
		bar = &m
	}

	return func(transferred, total int64) {
		var b strings.Builder
		if bar != nil {
			b.WriteString(bar.ViewAs(Percent(transferred, total) / 100))
			b.WriteString(" ")
		}
		b.WriteString(Format(transferred, total))
		if transferred >= total {
			b.WriteString("\n")
		} else {
			b.WriteString("\r")
		}
		_, _ = io.WriteString(w, b.String())
	}
}

// Recorder collects every update it receives. It is meant for tests and for
// callers that want to inspect a transfer after the fact.
type Recorder struct {
	Updates [][2]int64
}

func (r *Recorder) Func() Func {
	return func(transferred, total int64) {
		r.Updates = append(r.Updates, [2]int64{transferred, total})
	}
}

// Last returns the final update, or zeros if none arrived.
func (r *Recorder) Last() (transferred, total int64) {
	if len(r.Updates) == 0 {
		return 0, 0
	}
	u := r.Updates[len(r.Updates)-1]
	return u[0], u[1]
}
