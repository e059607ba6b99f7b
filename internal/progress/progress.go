// Package progress provides CLI progress indicators. Output goes to stderr
// to keep stdout clean for piping, and nothing is drawn unless stderr is a
// terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows that a long operation with no known length, such as a
// reference index rebuild, is still running.
type Spinner struct {
	w     io.Writer
	label string
	isTTY bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a spinner that writes to stderr.
func NewSpinner(label string) *Spinner {
	return &Spinner{
		w:     os.Stderr,
		label: label,
		isTTY: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Start draws the spinner and animates it until Stop.
func (s *Spinner) Start() {
	if !s.isTTY || s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s...", frames[i%len(frames)], s.label)
			select {
			case <-s.stop:
				return
			case <-t.C:
			}
		}
	}()
}

// Stop clears the spinner line.
func (s *Spinner) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
	fmt.Fprintf(s.w, "\r%*s\r", len(s.label)+6, "")
}
