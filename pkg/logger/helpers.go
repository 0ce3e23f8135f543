package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogSweepStart records the plan of a sweep invocation
func LogSweepStart(l Logger, source string, plan map[string]interface{}) {
	l.WithField("source", source).InfoWithFields("Sweep started", plan)
}

// LogUnit records one completed work unit
func LogUnit(l Logger, source string, start, end int64, records int, elapsed time.Duration) {
	l.DebugWithFields("Unit completed", map[string]interface{}{
		"source":  source,
		"start":   start,
		"end":     end,
		"records": records,
		"elapsed": elapsed,
	})
}

// LogSkip records a work unit abandoned after the fetcher gave up on it.
// The cursor still moves past it; the range can be re-harvested by resetting.
func LogSkip(l Logger, source string, start, end int64, attempts int, err error) {
	l.WithError(err).WarnWithFields("Skipping unit", map[string]interface{}{
		"source":   source,
		"start":    start,
		"end":      end,
		"attempts": attempts,
	})
}

// LogSweepStop records how an invocation ended
func LogSweepStop(l Logger, source, state string, summary map[string]interface{}) {
	l.WithFields(map[string]interface{}{
		"source": source,
		"state":  state,
	}).InfoWithFields("Sweep stopped", summary)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
