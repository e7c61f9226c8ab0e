package solarroof

import (
	"io"

	"github.com/charmbracelet/log"
)

// discardLogger is the logger used when none is configured. The library
// is silent unless the caller installs a logger with WithLogger.
func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
