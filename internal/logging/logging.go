// Package logging sets up the application's structured loggers.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/openvote/voteapi/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootLogger *slog.Logger

// Init initializes the logging system. Structured JSON logs go to stdout;
// when file logging is enabled they are additionally written to a rotating
// log file.
func Init(settings *conf.Settings) {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}

	var output io.Writer = os.Stdout
	if settings.Log.Enabled {
		fileWriter := &lumberjack.Logger{
			Filename:   settings.Log.Path,
			MaxSize:    settings.Log.MaxSize,
			MaxBackups: settings.Log.MaxBackups,
			MaxAge:     settings.Log.MaxAge,
			Compress:   true,
		}
		output = io.MultiWriter(os.Stdout, fileWriter)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	rootLogger = slog.New(handler)
	slog.SetDefault(rootLogger)
}

// ForService returns a logger scoped to a named component. Falls back to
// the default logger when Init has not been called, which keeps tests and
// library use working without setup.
func ForService(service string) *slog.Logger {
	logger := rootLogger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("service", service)
}
