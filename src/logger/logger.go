package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// -----------------------------------------------------------------------------
// Levels
// -----------------------------------------------------------------------------

const (
	levelDebug = iota
	levelInfo
	levelWarning
	levelError
)

func parseLevel(name string) int {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return levelDebug
	case "WARNING":
		return levelWarning
	case "ERROR":
		return levelError
	default:
		return levelInfo
	}
}

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger *log.Logger
	level  int
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. level is the minimum severity
// emitted ("" means INFO).
func NewLogger(level string, name string) *Logger {
	return &Logger{
		name:   name,
		logger: log.New(os.Stdout, "", log.LstdFlags),
		level:  parseLevel(level),
	}
}

// -----------------------------------------------------------------------------

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level > levelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] DEBUG: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level > levelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] INFO: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Warning logs warning messages
func (l *Logger) Warning(format string, args ...interface{}) {
	if l.level > levelWarning {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] WARNING: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] ERROR: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] CRITICAL: %s", l.name, msg)
	os.Exit(1)
}
