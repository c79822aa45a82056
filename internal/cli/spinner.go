package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner shows progress for a blocking operation. The zero value and a
// Spinner created in quiet mode do nothing.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner starts a spinner on w with the given suffix, unless quiet is
// set or w is not a terminal.
func NewSpinner(w io.Writer, suffix string, quiet bool) *Spinner {
	if quiet || !IsTerminal(w) {
		return &Spinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	s.Start()
	return &Spinner{s: s}
}

// SetSuffix updates the text shown next to the spinner.
func (s *Spinner) SetSuffix(suffix string) {
	if s.s == nil {
		return
	}
	s.s.Lock()
	s.s.Suffix = " " + suffix
	s.s.Unlock()
}

// Stop halts the spinner.
func (s *Spinner) Stop() {
	if s.s != nil {
		s.s.Stop()
	}
}
