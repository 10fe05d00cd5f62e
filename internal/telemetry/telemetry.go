// Package telemetry wires up the logger and tracer every organizer
// component is handed at construction time, following the
// cmd/aios-daemon initLogger + otel.Tracer("pkg.component") convention used
// throughout the rest of this codebase.
package telemetry

import (
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// NewLogger builds a logrus.Logger at the given level. format is "json" for
// daemon/production use or anything else for the human-readable text
// formatter used by the single-file CLI driver.
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// Tracer returns the otel tracer for a given organizer component, e.g.
// Tracer("pipeline") -> otel.Tracer("organizer.pipeline").
func Tracer(component string) trace.Tracer {
	return otel.Tracer("organizer." + component)
}
