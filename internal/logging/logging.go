// Package logging builds the structured logger injected into every
// component constructor rather than reached for as a package global.
// Events use logrus's structured fields to mirror "event, field=value"
// style logging.
package logging

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds a *logrus.Entry configured for either local development
// (text) or production (json) output, selected by TOURNEY_LOG_FORMAT. The
// returned entry is pre-tagged with "component" so every call site's log
// line is attributable without repeating itself.
func New(component string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(envOrDefault("TOURNEY_LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if envOrDefault("TOURNEY_LOG_FORMAT", "text") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	}

	return logger.WithField("component", component)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
