// Package logger owns the process-wide logrus logger of the beer game binaries.
// Training, sweeps and the config watcher all log through entries derived from it.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/TristanKruse/Beer-Game-RL/pkg/config"
)

var Log *logrus.Logger

// Initialize builds the logger from the logging section. Packages that log
// through the logrus standard logger before a run starts (config loading and
// watching) get the same formatter and output.
func Initialize(cfg *config.LoggingConfig) {
	Log = logrus.New()
	SetLevel(cfg.Level)

	formatter, ok := formatterFor(cfg.Format)
	if !ok {
		Log.Warnf("Unknown log format %q, falling back to text", cfg.Format)
	}
	Log.SetFormatter(formatter)
	Log.SetOutput(outputFor(cfg.Output))

	std := logrus.StandardLogger()
	std.SetFormatter(Log.Formatter)
	std.SetOutput(Log.Out)
	std.SetLevel(Log.GetLevel())

	Log.Debug("Logger initialized")
}

func formatterFor(format string) (logrus.Formatter, bool) {
	switch format {
	case "json":
		// millisecond timestamps so per-episode lines of a fast run stay ordered
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}, true
	case "text":
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}, true
	}
	return &logrus.TextFormatter{FullTimestamp: true}, false
}

// outputFor resolves stdout, stderr or a log file path
func outputFor(output string) io.Writer {
	switch output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		Log.Warnf("Cannot open log file %q, logging to stdout: %v", output, err)
		return os.Stdout
	}
	return file
}

// SetLevel is the hot-reload hook of the config watcher; unknown levels become info
func SetLevel(level string) {
	l := GetLogger()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		l.Warnf("Unknown log level %q, using info", level)
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
}

// GetLogger returns the global logger, creating an info-level text logger for
// code paths (tests, library use) that never called Initialize
func GetLogger() *logrus.Logger {
	if Log == nil {
		Log = logrus.New()
		Log.SetLevel(logrus.InfoLevel)
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return Log
}

// Component tags entries with the emitting part of the program, e.g. "sweep"
func Component(name string) *logrus.Entry {
	return GetLogger().WithField("component", name)
}

// ForRun tags entries with the training run and the scenario it plays
func ForRun(runID, scenario string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"run_id":   runID,
		"scenario": scenario,
	})
}
