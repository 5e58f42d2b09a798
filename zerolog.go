package dispatchz

import "github.com/rs/zerolog"

// ZerologSink writes trace events to a zerolog logger at debug level.
// Failed callback invocations are written at warn level with the error.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink creates a sink writing to logger.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// Record implements Sink.
func (s *ZerologSink) Record(ev Event) {
	var e *zerolog.Event
	if ev.Err != nil {
		e = s.logger.Warn().Err(ev.Err)
	} else {
		e = s.logger.Debug()
	}

	e = e.Str("category", ev.Category.String()).
		Str("op", ev.Op).
		Time("at", ev.Time)

	if ev.Key != "" {
		e = e.Str("hook", ev.Key)
	}
	if ev.Category == DebugCalls || ev.Category == DebugBinds {
		e = e.Int("priority", ev.Priority)
	}
	if ev.Duration > 0 {
		e = e.Dur("duration", ev.Duration)
	}
	e.Msg(ev.Message)
}
