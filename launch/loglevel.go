// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"fmt"
	"log/slog"
)

// LogLevel is the worker logging threshold carried in the handshake.
// The ordinal values are wire format: they never change, and new levels
// are only appended.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
	LogQuiet
)

// levelNames is indexed by ordinal.
var levelNames = [...]string{"debug", "info", "warn", "error", "quiet"}

// String returns the level's configuration name.
func (l LogLevel) String() string {
	if l < LogDebug || l > LogQuiet {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is a defined level.
func (l LogLevel) Valid() bool {
	return l >= LogDebug && l <= LogQuiet
}

// Slog maps the level onto the slog scale. LogQuiet maps above
// slog.LevelError so that nothing is emitted at standard levels.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogInfo:
		return slog.LevelInfo
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelError + 4
	}
}

// ParseLogLevel resolves a configuration name ("debug", "info", "warn",
// "error", "quiet") to its level.
func ParseLogLevel(name string) (LogLevel, error) {
	for i, candidate := range levelNames {
		if name == candidate {
			return LogLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}
