package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the pipeline counters. A nil *Metrics is valid and records
// nothing, which keeps tests free of telemetry setup.
type Metrics struct {
	bargeIns   metric.Int64Counter
	utterances metric.Int64Counter
	sentences  metric.Int64Counter
	staleDrops metric.Int64Counter
	synthFails metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/vocata-labs/vocata-core/pipeline")
	m := &Metrics{}
	var err error
	if m.bargeIns, err = meter.Int64Counter("vocata.pipeline.barge_ins",
		metric.WithDescription("Times a user interrupted playback mid-reply")); err != nil {
		return nil, err
	}
	if m.utterances, err = meter.Int64Counter("vocata.pipeline.utterances",
		metric.WithDescription("Finalized user utterances handed to reply generation")); err != nil {
		return nil, err
	}
	if m.sentences, err = meter.Int64Counter("vocata.pipeline.sentences",
		metric.WithDescription("Sentences queued for speech synthesis")); err != nil {
		return nil, err
	}
	if m.staleDrops, err = meter.Int64Counter("vocata.pipeline.stale_drops",
		metric.WithDescription("Sentences discarded because their token was superseded")); err != nil {
		return nil, err
	}
	if m.synthFails, err = meter.Int64Counter("vocata.pipeline.synth_failures",
		metric.WithDescription("Speech synthesis calls that returned no audio")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) addBargeIn(ctx context.Context)   { m.add(ctx, m.bargeIns, 1) }
func (m *Metrics) addUtterance(ctx context.Context) { m.add(ctx, m.utterances, 1) }
func (m *Metrics) addSentence(ctx context.Context)  { m.add(ctx, m.sentences, 1) }
func (m *Metrics) addStaleDrops(ctx context.Context, n int) {
	m.add(ctx, m.staleDrops, int64(n))
}
func (m *Metrics) addSynthFailure(ctx context.Context) { m.add(ctx, m.synthFails, 1) }

func (m *Metrics) add(ctx context.Context, counter metric.Int64Counter, n int64) {
	if m == nil || counter == nil || n <= 0 {
		return
	}
	counter.Add(ctx, n)
}
