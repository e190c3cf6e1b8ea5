package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logger.SetLevel(parsed)
		}
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	return logger
}

// WithExecution returns an entry carrying the execution and workflow
// identity on every line.
func WithExecution(executionID, workflowID string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"execution_id": executionID,
		"workflow_id":  workflowID,
	})
}
