// Package logging configures the global zerolog logger from command line settings.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Settings struct {
	Level  string `mapstructure:"log-level" yaml:"log-level"`
	Format string `mapstructure:"log-format" yaml:"log-format"`
	File   string `mapstructure:"log-file" yaml:"log-file,omitempty"`
	// Caller adds file:line to every entry.
	Caller bool `mapstructure:"log-caller" yaml:"log-caller,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{Level: "info", Format: "text"}
}

// Init builds the logger described by s, installs it as log.Logger and returns it.
func Init(s Settings) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if s.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s.Level))
		if err != nil {
			return zerolog.Nop(), errors.Wrapf(err, "invalid log level %q", s.Level)
		}
		level = l
	}

	var out io.Writer = os.Stderr
	tty := s.File == "" && isatty.IsTerminal(os.Stderr.Fd())
	if s.File != "" {
		out = &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
	}

	switch strings.ToLower(s.Format) {
	case "", "text":
		out = zerolog.ConsoleWriter{Out: out, NoColor: !tty, TimeFormat: time.TimeOnly}
	case "json":
	default:
		return zerolog.Nop(), errors.Errorf("invalid log format %q (want text or json)", s.Format)
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if s.Caller {
		ctx = ctx.Caller()
	}
	logger := ctx.Logger()
	zerolog.SetGlobalLevel(level)
	log.Logger = logger
	return logger, nil
}
