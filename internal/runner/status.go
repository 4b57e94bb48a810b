package runner

import (
	"github.com/rs/zerolog"
)

// StatusReporter receives human-readable progress of a run: one Status per
// phase, then exactly one of Succeed or Fail.
type StatusReporter interface {
	Status(msg string)
	Succeed(msg string)
	Fail(msg string, err error)
}

// LogReporter writes status messages to a zerolog logger.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter creates a reporter on top of logger.
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Status(msg string) {
	r.logger.Info().Str("status", "running").Msg(msg)
}

func (r *LogReporter) Succeed(msg string) {
	r.logger.Info().Str("status", "succeeded").Msg(msg)
}

func (r *LogReporter) Fail(msg string, err error) {
	r.logger.Error().Err(err).Str("status", "failed").Msg(msg)
}
