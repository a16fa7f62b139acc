// Package logging carries a structured logger through context.Context so
// that every layer of the provisioning pipeline logs with the same
// request-scoped fields.
package logging

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextKey struct{}

// New returns the process-level logger: JSON formatted, info level.
func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a default logger if
// none was attached.
func FromContext(ctx context.Context) logrus.FieldLogger {
	if logger, ok := ctx.Value(contextKey{}).(logrus.FieldLogger); ok {
		return logger
	}
	return New()
}
