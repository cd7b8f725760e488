package util

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// StandardLogger enforces specific log message formats
type StandardLogger struct {
	*logrus.Logger
}

// NewLogger initializes the standard logger
// level is any logrus level name, format is either "json" or "text"
func NewLogger(level, format string) *StandardLogger {
	var baseLogger = logrus.New()
	var standardLogger = &StandardLogger{baseLogger}

	standardLogger.Out = os.Stdout
	if strings.EqualFold(format, "text") {
		standardLogger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	} else {
		standardLogger.Formatter = &logrus.JSONFormatter{}
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	standardLogger.SetLevel(lvl)

	return standardLogger
}

// ForProject returns an entry tagged with the project id
func (l *StandardLogger) ForProject(projectID string) *logrus.Entry {
	return l.WithField("projectID", projectID)
}
