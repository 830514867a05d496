// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ericogr/rplidar-to-mqtt/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileMaxSizeMB  = 1
	logFileMaxBackups = 2
)

// Setup points the global logger at stderr, or at writers when given, plus
// the rotated log file from cfg.
func Setup(cfg config.LogConfig, writers ...io.Writer) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	if len(writers) == 0 {
		writers = []io.Writer{os.Stderr}
	}
	outs := make([]io.Writer, 0, len(writers)+1)
	for _, w := range writers {
		if cfg.JSON {
			outs = append(outs, w)
		} else {
			outs = append(outs, zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
		}
	}
	if cfg.File != "" {
		outs = append(outs, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
		})
	}

	log.Logger = zerolog.New(io.MultiWriter(outs...)).
		Level(level).
		With().Timestamp().Logger()
	return nil
}
