package logger

import (
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"simplenotes/internal/config"
)

func Init(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})

	writers := []io.Writer{os.Stdout}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			logrus.WithError(err).Warn("could not create log directory")
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize, // MB
			MaxAge:     cfg.MaxAge,  // days
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
			Compress:   true,
		})
	}

	logrus.SetOutput(io.MultiWriter(writers...))
}

// MaskURL hides credentials in a connection string, keeping host and
// database so operators can tell which instance is being dialled.
func MaskURL(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(masked URL)"
	}
	if u.User != nil {
		u.User = url.User("xxxxx")
	}
	u.RawQuery = ""
	return u.String()
}
