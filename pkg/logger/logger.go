package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New создает корневой логгер с заданным уровнем
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// Component возвращает дочерний логгер с меткой компонента
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
