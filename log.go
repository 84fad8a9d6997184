package deniable

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// discardLogger is used when the configuration carries no logger
func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// NewLogger returns a text logger on stderr at the given level, the setup
// used by the command line tool
func NewLogger(level string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, NewValidationError("log_level", level, err.Error())
	}
	l.SetLevel(lvl)
	return l, nil
}
