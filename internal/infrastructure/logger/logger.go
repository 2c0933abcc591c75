package logger

import (
	"fmt"
	"io"
	"os"

	"casino/internal/config"

	"github.com/sirupsen/logrus"
)

// New builds a logrus logger from log.level and log.format.
func New(cfg *config.LogConfig) (*logrus.Logger, error) {
	return newTo(os.Stdout, cfg)
}

func newTo(w io.Writer, cfg *config.LogConfig) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	l.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log.format %q", cfg.Format)
	}
	return l, nil
}

// Discard is a logger for tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
