// Package telemetry reports deployment progress. The pipeline emits stage
// and substage events here and nowhere else; all formatting decisions stay
// on this side of the boundary.
package telemetry

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reporter receives progress events from a pipeline run.
type Reporter interface {
	// Stage marks entry into a top-level pipeline stage.
	Stage(name string)

	// Substage reports a step within the current stage.
	Substage(stage, detail string)

	// Retrying reports a retryable failure before the next attempt.
	Retrying(stage string, attempt int, err error)

	// Warn reports a non-fatal problem the run continues past.
	Warn(stage string, err error)

	// Done marks the run as finished.
	Done(summary string)
}

// LogReporter writes progress events through zerolog, tagging every event
// with a run ID so interleaved output from concurrent invocations stays
// attributable.
type LogReporter struct {
	log zerolog.Logger
}

// NewLogReporter creates a reporter bound to a fresh run ID.
func NewLogReporter(log zerolog.Logger) *LogReporter {
	return &LogReporter{
		log: log.With().Str("run_id", uuid.NewString()).Logger(),
	}
}

func (r *LogReporter) Stage(name string) {
	r.log.Info().Str("stage", name).Msg("stage started")
}

func (r *LogReporter) Substage(stage, detail string) {
	r.log.Info().Str("stage", stage).Msg(detail)
}

func (r *LogReporter) Retrying(stage string, attempt int, err error) {
	r.log.Warn().Str("stage", stage).Int("attempt", attempt).Err(err).Msg("retrying")
}

func (r *LogReporter) Warn(stage string, err error) {
	r.log.Warn().Str("stage", stage).Err(err).Msg("continuing past non-fatal failure")
}

func (r *LogReporter) Done(summary string) {
	r.log.Info().Msg(summary)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Stage(string)                {}
func (NopReporter) Substage(string, string)     {}
func (NopReporter) Retrying(string, int, error) {}
func (NopReporter) Warn(string, error)          {}
func (NopReporter) Done(string)                 {}
