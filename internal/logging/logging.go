// Package logging builds the loggers shared by a bmadnotion run.
//
// Every run appends to a rotating log file in the project state directory;
// --verbose mirrors the same lines to stderr.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file inside the state directory.
const FileName = "sync.log"

// Options configure New.
type Options struct {
	// Dir is the state directory holding the log file. Empty disables the file.
	Dir string
	// Verbose mirrors log lines to Stderr.
	Verbose bool
	// Stderr defaults to os.Stderr.
	Stderr io.Writer

	// Rotation limits; zero values use the defaults below.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger fans log lines out to the configured sinks and tags the run.
type Logger struct {
	RunID string

	w    io.Writer
	file *lumberjack.Logger
}

// New returns a logger with a fresh run id.
func New(opts Options) *Logger {
	l := &Logger{RunID: uuid.NewString()}

	var sinks []io.Writer
	if opts.Dir != "" {
		l.file = &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, FileName),
			MaxSize:    orDefault(opts.MaxSizeMB, 5),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
		}
		sinks = append(sinks, l.file)
	}
	if opts.Verbose {
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		sinks = append(sinks, stderr)
	}

	switch len(sinks) {
	case 0:
		l.w = io.Discard
	case 1:
		l.w = sinks[0]
	default:
		l.w = io.MultiWriter(sinks...)
	}
	return l
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Named returns a logger whose messages carry a "[name] " prefix after the
// timestamp.
func (l *Logger) Named(name string) *log.Logger {
	return log.New(l.w, "["+name+"] ", log.LstdFlags|log.Lmsgprefix)
}

// Path returns the log file path, or "" when file logging is off.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Filename
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
