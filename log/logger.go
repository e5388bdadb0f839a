// Package log wraps logrus with the conventions used across the light client:
// one root logger, per-component entries tagged with a "module" field, and
// optional forwarding of error-level entries to Sentry.
//
// Usage:
//
//	var logger = log.New("lightclient")
//	logger.WithField("height", h).Info("Header advanced")
package log

import (
	"io"
	"os"
	"strings"

	"github.com/evalphobia/logrus_sentry"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

const (
	// default log level
	defaultLogLevel = logrus.InfoLevel

	// default log file params
	defaultLogMaxSize    = 100 // maximum file size before rotation, in MB
	defaultLogMaxBackups = 3   // maximum number of old log files to keep
	defaultLogMaxAge     = 28  // maximum number of days to retain old log files

	timestampFormat = "01-02|15:04:05.000"
)

// root logger instance used by the application
var logger = createStandardLogger()

// Config selects the output of the root logger.
type Config struct {
	// Verbosity follows the geth convention: 0=panic 1=error 2=warn 3=info 4=debug 5=trace.
	Verbosity int
	// Format is "text" or "json".
	Format string
	// Color forces ANSI colours in text output.
	Color bool
	// File, when set, additionally writes a rotated log file.
	File string
	// SentryDSN, when set, forwards error-level entries to Sentry.
	SentryDSN string
}

func createStandardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
	})
	l.SetLevel(defaultLogLevel)
	return l
}

// Setup reconfigures the root logger. Component loggers created with New pick
// the change up, since they are entries on the root logger. Hooks installed by
// an earlier call are replaced.
func Setup(cfg Config) error {
	logger.SetLevel(VerbosityToLevel(cfg.Verbosity))

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:     cfg.Color,
			DisableColors:   !cfg.Color,
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	if cfg.File != "" {
		output := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    defaultLogMaxSize,
			MaxBackups: defaultLogMaxBackups,
			MaxAge:     defaultLogMaxAge,
		}
		logger.SetOutput(io.MultiWriter(output, os.Stderr))
	}

	hooks := make(logrus.LevelHooks)
	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			return err
		}
		hooks.Add(hook)
	}
	logger.ReplaceHooks(hooks)
	return nil
}

// SetOutput redirects the root logger, mostly useful in tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// VerbosityToLevel maps a geth-style numeric verbosity onto a logrus level.
// Out of range values are clamped.
func VerbosityToLevel(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.PanicLevel
	case v == 1:
		return logrus.ErrorLevel
	case v == 2:
		return logrus.WarnLevel
	case v == 3:
		return logrus.InfoLevel
	case v == 4:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// New returns a logger for one component.
func New(module string) *logrus.Entry {
	return logger.WithField("module", module)
}
