// Package log builds and configures the logrus loggers used by gitobj.
package log

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is the timestamp layout of every formatter.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a logger writing to w at info level with the text formatter.
func New(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.Out = w
	l.Formatter = &logrus.TextFormatter{TimestampFormat: TimestampFormat}
	return l
}

// Configure sets format and level on l. An empty format keeps the current
// formatter; an unparsable level falls back to info.
func Configure(l *logrus.Logger, format, level string) error {
	var formatter logrus.Formatter
	switch format {
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: TimestampFormat}
	case "text":
		formatter = &logrus.TextFormatter{TimestampFormat: TimestampFormat}
	case "":
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if formatter != nil {
		l.Formatter = formatter
	}
	return nil
}
