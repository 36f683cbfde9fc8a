package logging

import (
	"io"

	"github.com/charmbracelet/log"
)

const prefix = "islet"

// New returns the command-line logger. Verbose enables debug output, which
// includes dependency branches the walker gave up on.
func New(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: prefix})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
