// Package log wraps a process-wide logrus logger configured from the
// command line, plus the revision-sequenced output buffer the pipeline
// uses so that log lines appear in revision order even though commits
// are produced out of order.
package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func init() {
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    true,
	})
	logger.SetLevel(logrus.InfoLevel)
}

// Configure sets verbosity from the -v/--quiet flags: quiet wins, then
// each level of verbose lowers the threshold.
func Configure(verbose int, quiet bool) {
	switch {
	case quiet:
		logger.SetLevel(logrus.WarnLevel)
	case verbose >= 2:
		logger.SetLevel(logrus.TraceLevel)
	case verbose == 1:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
}

// Logger exposes the configured logger for callers that want to attach
// their own fields.
func Logger() *logrus.Logger { return logger }

// sanitize keeps control characters out of single-line log output; dump
// data (log messages, property values) routinely embeds both.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", "<cr>")
	return strings.ReplaceAll(s, "\n", "<lf>")
}

// Info logs at info level with printf formatting.
func Info(format string, args ...any) {
	logger.Info(sanitize(fmt.Sprintf(format, args...)))
}

// Debug logs at debug level with printf formatting.
func Debug(format string, args ...any) {
	logger.Debug(sanitize(fmt.Sprintf(format, args...)))
}

// Warn logs at warning level with printf formatting.
func Warn(format string, args ...any) {
	logger.Warn(sanitize(fmt.Sprintf(format, args...)))
}

// Error logs at error level with printf formatting.
func Error(format string, args ...any) {
	logger.Error(sanitize(fmt.Sprintf(format, args...)))
}

// WithRev returns an entry carrying revision context.
func WithRev(rev int) *logrus.Entry {
	return logger.WithField("rev", rev)
}

// WithContext tags an entry with the full (revision, branch, path)
// triple errors and warnings are surfaced with.
func WithContext(rev int, branch, path string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"rev": rev, "branch": branch, "path": path})
}
