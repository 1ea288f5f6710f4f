// Package util provides small cross-cutting helpers shared across the
// broker: a package-global structured logger and string/range helpers used
// by the configuration loader and CLI.
package util

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the package-global logger instance used by every component of
// the broker. Tests may swap its output/level and must restore them after.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLogLevel sets the logging level
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetLogOutput sets the log output destination
func SetLogOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// SetJSONFormat enables JSON log format
func SetJSONFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
}

// WithField returns a logger with a field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithFields returns a logger with multiple fields
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithNetwork returns a logger with network (switch or aggregator) context.
func WithNetwork(network string) *logrus.Entry {
	return Logger.WithField("network", network)
}

// WithService returns a logger with service-id context.
func WithService(serviceID int) *logrus.Entry {
	return Logger.WithField("service", serviceID)
}

// WithTrunk returns a logger with trunk-id context.
func WithTrunk(trunkID string) *logrus.Entry {
	return Logger.WithField("trunk", trunkID)
}
