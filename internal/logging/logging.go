// Package logging configures the global slog logger for bepaste.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"
)

// Format selects the log output format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat converts a string to a Format, returning FormatAuto for unknown values.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "text", "tint", "human":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return FormatAuto
	}
}

// ParseLevel converts a string to a slog.Level. An empty or unknown string
// yields def.
func ParseLevel(s string, def slog.Level) slog.Level {
	var l slog.Level
	if s == "" || l.UnmarshalText([]byte(s)) != nil {
		return def
	}
	return l
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// New builds a logger writing to w: colored tinter output for FormatText or
// for FormatAuto on a terminal, JSON otherwise.
func New(w io.Writer, format Format, level slog.Level) *slog.Logger {
	if format == FormatText || (format == FormatAuto && IsTTY(w)) {
		return slog.New(tinter.NewHandler(w, &tinter.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Setup installs the global logger on stderr. Interactive runs (a terminal or
// --no-background) default to debug, the daemon under a service manager to info.
func Setup(interactive bool, format, level string) {
	def := slog.LevelInfo
	if interactive {
		def = slog.LevelDebug
	}
	slog.SetDefault(New(os.Stderr, ParseFormat(format), ParseLevel(level, def)))
}
