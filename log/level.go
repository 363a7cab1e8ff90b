package log

import (
	"io"
	"sync/atomic"

	"gopkg.in/Sirupsen/logrus.v0"
)

type Level = logrus.Level

const (
	PanicLevel = logrus.PanicLevel
	FatalLevel = logrus.FatalLevel
	ErrorLevel = logrus.ErrorLevel
	WarnLevel  = logrus.WarnLevel
	InfoLevel  = logrus.InfoLevel
	DebugLevel = logrus.DebugLevel
)

var disabled atomic.Bool

func init() {
	// Per-module masks decide what gets through, logrus itself lets
	// everything pass.
	logrus.SetLevel(logrus.DebugLevel)
}

// Configure sets the destination of all log entries. Colors are forced on
// when the destination is known to be a terminal.
func Configure(w io.Writer, colors bool) {
	logrus.SetOutput(w)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:   colors,
		DisableColors: !colors,
		FullTimestamp: true,
	})
}

// Disable turns off all logging, warnings and errors included.
func Disable() {
	disabled.Store(true)
	logrus.SetOutput(io.Discard)
}
