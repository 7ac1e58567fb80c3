package logger

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Init configures the process logger.  level is a logrus level name
// ("debug", "info", ...); an unknown level falls back to info.  format
// "text" selects the human readable formatter, anything else JSON.
func Init(level, format string) {
	l := logrus.New()
	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	logger = l
}

func Get() *logrus.Logger {
	once.Do(func() {
		if logger == nil {
			Init("info", "json")
		}
	})
	return logger
}
