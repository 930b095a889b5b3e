// Package logging provides the leveled logging filter shared by restack
// components. Components log through a *log.Logger with key=value messages;
// the level filter decides what gets written.
package logging

import (
	"log"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger wraps a *log.Logger with a level filter and component tag.
type Logger struct {
	logger    *log.Logger
	level     Level
	component string
}

func New(logger *log.Logger, level Level, component string) *Logger {
	return &Logger{logger: logger, level: level, component: component}
}

// WithComponent returns a logger with the same sink and level but a
// different component tag.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{logger: l.logger, level: l.level, component: component}
}

func (l *Logger) Logf(level Level, format string, args ...any) {
	if l == nil || l.logger == nil || level < l.level {
		return
	}
	prefix := time.Now().UTC().Format(time.RFC3339) + " " + level.String() + " " + l.component + ": "
	l.logger.Printf(prefix+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.Logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.Logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.Logf(LevelError, format, args...) }
