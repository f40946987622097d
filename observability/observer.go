// Package observability carries the events the hub, its roots and the
// script runtime report about themselves. Observers turn events into logs
// (slog, zerolog), collect them for tests (Recorder) or fan them out.
//
// Level values follow the OpenTelemetry SeverityNumber ranges.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Level is an event severity.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG (5-8)
	LevelInfo    Level = 9  // OTel INFO (9-12)
	LevelWarning Level = 13 // OTel WARN (13-16)
	LevelError   Level = 17 // OTel ERROR (17-20)
)

// ParseLevel reads a level name as used in config files: verbose (or
// debug), info, warn (or warning) and error. Case is ignored.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "verbose", "debug":
		return LevelVerbose, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("unknown event level %q", name)
	}
}

func (l Level) String() string {
	switch {
	case l <= 4:
		return "TRACE"
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	case l <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// SlogLevel maps l onto slog. Everything above the WARN range is an error.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType names what happened, prefixed by the reporting package:
// "root.start", "hub.call.dropped", "frame.push", "script.eval.complete".
type EventType string

// Event is one report. Source names the reporting component (such as
// "root.Runtime") and Data holds its attributes; roots always set "root".
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// NewEvent creates an event stamped with the wall clock.
func NewEvent(eventType EventType, level Level, source string, data map[string]any) Event {
	return Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}

// Observer receives events. OnEvent is called from many root goroutines
// at once and must not block.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}
