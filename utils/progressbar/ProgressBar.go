// Package progressbar implements functionality of printing a progress
// bar to the terminal window
package progressbar

import (
	"fmt"
	"strings"
	"time"
)

// ProgressBar implements a concurrent progress bar over a fixed
// number of episodes. Redrawing happens in a separate goroutine so the
// bar runs concurrently with the experiment.
type ProgressBar struct {
	width float64
	max   float64

	progress   float64
	lastReturn float64

	events chan event
	done   chan struct{}
	closed bool
}

type event struct {
	progress   float64
	lastReturn float64
}

// New returns a new progress bar that is width characters wide and
// reaches 100% after max Increment calls.
func New(width, max int) *ProgressBar {
	return &ProgressBar{
		width:  float64(width),
		max:    float64(max),
		events: make(chan event, 1),
		done:   make(chan struct{}),
	}
}

// Increment marks one episode as finished and records its return for
// display.
func (p *ProgressBar) Increment(episodeReturn float64) {
	if p.closed || p.progress >= p.max {
		return
	}
	p.progress++
	p.lastReturn = episodeReturn
	select {
	case p.events <- event{p.progress, p.lastReturn}:
	default:
	}
}

// Close stops the display goroutine. The bar cannot be reused.
func (p *ProgressBar) Close() {
	if p.closed {
		panic("close: close on closed progress bar")
	}
	p.closed = true
	close(p.done)
	fmt.Println()
}

// Display starts drawing the bar. It should only be called once.
func (p *ProgressBar) Display() {
	go func() {
		tick := time.NewTicker(time.Second)
		defer tick.Stop()

		var current event
		var elapsed time.Duration
		var bar strings.Builder

		for {
			select {
			case current = <-p.events:
			case <-tick.C:
				elapsed += time.Second
			case <-p.done:
				return
			}

			bar.Reset()
			bar.WriteString("|")
			filled := current.progress / p.max * p.width
			for i := 0.0; i < filled; i++ {
				bar.WriteString("█")
			}
			for i := filled; i < p.width; i++ {
				bar.WriteString(" ")
			}
			fmt.Fprintf(&bar, "| [%.2f%% | return: %.2f | elapsed: %v]",
				current.progress/p.max*100, current.lastReturn, elapsed)

			fmt.Printf("\n\033[1A\033[K%v", bar.String())
		}
	}()
}
