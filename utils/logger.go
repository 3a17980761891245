package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  = logrus.New()
	ErrorLogger = logrus.New()
)

// InitLogger points InfoLogger at stdout and ErrorLogger at stderr. JSON
// output is used in production, text elsewhere.
func InitLogger(production bool) {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()

	InfoLogger.SetOutput(os.Stdout)
	ErrorLogger.SetOutput(os.Stderr)

	if production {
		InfoLogger.SetFormatter(&logrus.JSONFormatter{})
		ErrorLogger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		InfoLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		ErrorLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	InfoLogger.SetLevel(logrus.InfoLevel)
	ErrorLogger.SetLevel(logrus.WarnLevel)
}
