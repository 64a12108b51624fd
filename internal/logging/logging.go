package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel orders messages by severity; higher is more severe.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// String returns the lower case name used by LOG_LEVEL.
func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("unknown(%d)", int32(l))
}

// ParseLevel maps a LOG_LEVEL value to a level. "warning" is accepted for
// warn. Anything else yields LevelInfo and false.
func ParseLevel(s string) (LogLevel, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return LevelWarn, true
	}
	for i, name := range levelNames {
		if name == s {
			return LogLevel(i), true
		}
	}
	return LevelInfo, false
}

// levelFromEnv lets a truthy DEBUG override LOG_LEVEL.
func levelFromEnv() LogLevel {
	switch strings.ToLower(os.Getenv("DEBUG")) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}
	level, _ := ParseLevel(os.Getenv("LOG_LEVEL"))
	return level
}

var (
	level     atomic.Int32
	levelInit sync.Once
)

func threshold() LogLevel {
	levelInit.Do(func() { level.Store(int32(levelFromEnv())) })
	return LogLevel(level.Load())
}

// SetLevel replaces the level read from the environment.
func SetLevel(l LogLevel) {
	levelInit.Do(func() {})
	level.Store(int32(l))
}

// GetLevel returns the active level.
func GetLevel() LogLevel { return threshold() }

// IsDebugEnabled guards debug output that is expensive to build.
func IsDebugEnabled() bool { return threshold() <= LevelDebug }

func logf(l LogLevel, tag, format string, args []interface{}) {
	if threshold() <= l {
		log.Printf(tag+format, args...)
	}
}

func Debug(format string, args ...interface{}) { logf(LevelDebug, "[DEBUG] ", format, args) }

func Info(format string, args ...interface{}) { logf(LevelInfo, "[INFO] ", format, args) }

func Warn(format string, args ...interface{}) { logf(LevelWarn, "[WARN] ", format, args) }

func Error(format string, args ...interface{}) { logf(LevelError, "[ERROR] ", format, args) }

// Fatal logs regardless of level and exits with status 1.
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Printf always logs, without a level tag.
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}
