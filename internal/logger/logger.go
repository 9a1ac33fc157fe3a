// Package logger configures the process-wide logrus logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction. Zero values mean text output at info
// level to stderr only.
type Options struct {
	Level  string
	Format string
	// File, when set, additionally writes to a rotating log file.
	File string
}

// Init configures the standard logrus logger and returns it.
func Init(opts Options) *logrus.Logger {
	l := logrus.StandardLogger()
	configure(l, opts)
	return l
}

// New returns an independent logger with the given options.
func New(opts Options) *logrus.Logger {
	l := logrus.New()
	configure(l, opts)
	return l
}

func configure(l *logrus.Logger, opts Options) {
	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stderr
	if opts.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	l.SetOutput(out)
}

// Component returns an entry tagged with the given component name.
func Component(l logrus.FieldLogger, name string) *logrus.Entry {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return l.WithField("component", name)
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
