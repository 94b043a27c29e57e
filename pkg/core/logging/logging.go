// Package logging configures the logrus logger shared by the engine, the
// batch pipeline and the CLI.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"vdyp_forward/pkg/models"
)

// New returns a logger at level ("debug", "info", ...) using the "text" or
// "json" formatter.
func New(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format %q is neither text nor json", format)
	}
	return logger, nil
}

// Discard returns a logger that writes nothing. Tests use it.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// ForPolygon returns an entry carrying the polygon and layer being processed.
func ForPolygon(logger logrus.FieldLogger, id models.PolygonIdentifier) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"polygon": id.String(),
		"layer":   models.LayerPrimary,
	})
}
