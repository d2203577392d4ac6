package worker

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Instrumentation is registered against the global meter provider; a
// host that installs no SDK gets no-op counters.
var (
	meter = otel.Meter("github.com/thebtf/vibe-replay/internal/worker")

	eventsRecorded   metric.Int64Counter
	sessionsAnalyzed metric.Int64Counter
	analysisSeconds  metric.Float64Histogram
)

func init() {
	eventsRecorded, _ = meter.Int64Counter("vibe_replay.events.recorded",
		metric.WithDescription("Tool-use events accepted by the ingest endpoint"))
	sessionsAnalyzed, _ = meter.Int64Counter("vibe_replay.sessions.analyzed",
		metric.WithDescription("Sessions run through the analysis pipeline"))
	analysisSeconds, _ = meter.Float64Histogram("vibe_replay.analysis.duration",
		metric.WithDescription("Wall time of one session analysis"),
		metric.WithUnit("s"))
}
