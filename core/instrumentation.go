package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-tutor/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	utterancesFinalized, _ = meter.Int64Counter("tutor.utterances.finalized",
		metric.WithDescription("Utterances dispatched to text generation"))
	bargeIns, _ = meter.Int64Counter("tutor.bargeins",
		metric.WithDescription("Assistant replies interrupted by the user"))
	synthesisFailures, _ = meter.Int64Counter("tutor.synthesis.failures",
		metric.WithDescription("Sentences skipped because synthesis failed"))
	firstAudioLatency, _ = meter.Float64Histogram("tutor.playback.first_audio_latency",
		metric.WithDescription("Time from playback request to the first audio sent to the output"),
		metric.WithUnit("s"))
)
