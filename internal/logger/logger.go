package logger

import (
	"os"
	"sync"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output encodings.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	// globalLogger holds the singleton logger instance.
	globalLogger *Logger
	once         sync.Once
)

// Init builds the singleton logger with the given level and format.
// Only the first call (Init or Get) decides the configuration.
func Init(level, format string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level, format, os.Stdout)
	})
	return globalLogger
}

// Get returns the singleton logger, initializing it with a console encoder
// on first use.
func Get(level string) *Logger {
	return Init(level, FormatConsole)
}
