package observability

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologObserver emits events to a zerolog.Logger, mirroring SlogObserver:
// the event type is the message and Data keys become fields.
type ZerologObserver struct {
	logger zerolog.Logger
}

// NewZerologObserver creates a ZerologObserver that emits to logger.
func NewZerologObserver(logger zerolog.Logger) *ZerologObserver {
	return &ZerologObserver{logger: logger}
}

// ZerologLevel maps a Level onto zerolog's levels.
func (l Level) ZerologLevel() zerolog.Level {
	switch {
	case l <= 4:
		return zerolog.TraceLevel
	case l <= 8:
		return zerolog.DebugLevel
	case l <= 12:
		return zerolog.InfoLevel
	case l <= 16:
		return zerolog.WarnLevel
	case l <= 20:
		return zerolog.ErrorLevel
	default:
		return zerolog.FatalLevel
	}
}

func (o *ZerologObserver) OnEvent(ctx context.Context, event Event) {
	level := event.Level.ZerologLevel()
	// Fatal would exit the process; events never do that.
	if level == zerolog.FatalLevel {
		level = zerolog.ErrorLevel
	}

	e := o.logger.WithLevel(level)
	if e == nil {
		return
	}
	e.Ctx(ctx).
		Time("event_time", event.Timestamp).
		Str("source", event.Source).
		Fields(event.Data).
		Msg(string(event.Type))
}
