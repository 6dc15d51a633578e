// Package logging prefixes log lines with a level and a UTC timestamp.
package logging

import (
	"io"
	"log"
	"os"
	"time"
)

// std carries no flags of its own; logf writes the only timestamp.
var std = log.New(os.Stderr, "", 0)

// SetOutput redirects log lines, mainly for tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func Infof(format string, args ...any) {
	logf("INFO ", format, args...)
}

func Warnf(format string, args ...any) {
	logf("WARN ", format, args...)
}

func Errorf(format string, args ...any) {
	logf("ERROR", format, args...)
}

func logf(level, format string, args ...any) {
	std.Printf(level+" %s "+format, append([]any{time.Now().UTC().Format(time.RFC3339Nano)}, args...)...)
}
