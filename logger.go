package clearpart

import (
	"bytes"
	"io"

	"github.com/sanity-io/litter"
	log "github.com/sirupsen/logrus"
)

// Logger is the logging interface used throughout clearpart, so callers can
// plug their own.
type Logger interface {
	Info(...interface{})
	Warn(...interface{})
	Debug(...interface{})
	Error(...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Debugf(string, ...interface{})
	Errorf(string, ...interface{})
	SetLevel(level log.Level)
	GetLevel() log.Level
	SetOutput(writer io.Writer)
}

// NewLogger returns a logrus backed Logger.
func NewLogger() Logger {
	return log.New()
}

// NewNullLogger returns a logger that discards everything.
func NewNullLogger() Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)

	return logger
}

// NewBufferLogger returns a logger writing into b, mostly for tests.
func NewBufferLogger(b *bytes.Buffer) Logger {
	logger := log.New()
	logger.SetOutput(b)
	logger.SetLevel(log.DebugLevel)

	return logger
}

// IsDebugLevel returns true if l logs debug messages.
func IsDebugLevel(l Logger) bool {
	return l.GetLevel() >= log.DebugLevel
}

func dumpState(l Logger, label string, g Graph) {
	if !IsDebugLevel(l) {
		return
	}

	l.Debugf("state %s:\n%s", label, litter.Sdump(g.Devices()))
}
