package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus with structured logging for the catalog service
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new structured logger configured for container environments
func NewLogger(level, format string) *Logger {
	logger := logrus.New()

	// Set log level
	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logger.SetLevel(logrus.FatalLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	// Set output format
	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		// Default to JSON for containers
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	// Set output (stdout for containers)
	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger}
}

// WithComponent adds a component field to all log entries
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.WithField("component", component)
}

// WithIGDB adds IGDB API context to log entries
func (l *Logger) WithIGDB() *logrus.Entry {
	return l.WithField("component", "igdb_client")
}

// WithSync adds refresh-run context to log entries
func (l *Logger) WithSync() *logrus.Entry {
	return l.WithField("component", "catalog_refresher")
}

// WithHTTP adds HTTP server context to log entries
func (l *Logger) WithHTTP() *logrus.Entry {
	return l.WithField("component", "http_server")
}

// WithRun adds refresh-run tracking context
func (l *Logger) WithRun(runID string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"component": "catalog_refresher",
		"run_id":    runID,
	})
}

// WithError adds error context
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.WithField("error", err.Error())
}

// Close provides a no-op close method for compatibility
func (l *Logger) Close() error {
	return nil
}

// SetOutput sets the logger output destination
func (l *Logger) SetOutput(output io.Writer) {
	l.Logger.SetOutput(output)
}

// RunStart logs the start of a catalog refresh run
func (l *Logger) RunStart(runID string) {
	l.WithRun(runID).Info("catalog refresh started")
}

// RunComplete logs successful completion of a catalog refresh run
func (l *Logger) RunComplete(runID string, duration float64, itemCount int) {
	l.WithRun(runID).WithFields(logrus.Fields{
		"duration_seconds": duration,
		"item_count":       itemCount,
	}).Info("catalog refresh completed")
}

// RunError logs a failed catalog refresh run
func (l *Logger) RunError(runID string, err error, duration float64) {
	l.WithRun(runID).WithFields(logrus.Fields{
		"duration_seconds": duration,
		"error":            err.Error(),
	}).Error("catalog refresh failed")
}

// APICall logs API call attempts
func (l *Logger) APICall(component, endpoint string, method string) {
	l.WithField("component", component).WithFields(logrus.Fields{
		"endpoint": endpoint,
		"method":   method,
	}).Debug("API call initiated")
}

// APIError logs API call failures
func (l *Logger) APIError(component, endpoint string, err error, statusCode int) {
	l.WithField("component", component).WithFields(logrus.Fields{
		"endpoint":    endpoint,
		"status_code": statusCode,
		"error":       err.Error(),
	}).Error("API call failed")
}
