// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs a console logger on stderr at the given level. Verbose forces
// debug level and adds caller information.
func Setup(level string, verbose bool) {
	SetupWriter(os.Stderr, level, verbose)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level string, verbose bool) {
	lvl := ParseLevel(level)
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	ctx := zerolog.New(out).With().Timestamp()
	if verbose {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
