package application

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/uov-ai/assistant/internal/domain"
	"github.com/uov-ai/assistant/internal/ports"
)

// Orchestrator composes the answer pipeline: guardrail classification,
// cache lookup, retrieval, confidence estimation, prompt assembly,
// generation, and cache write-back. It never retries upstream failures and
// never converts them into fallback answers; those surface to the caller.
type Orchestrator struct {
	retriever *Retriever
	llm       ports.LLMClient
	cache     ports.AnswerCache
	guardrail *GuardrailClassifier
	prompts   *PromptBuilder

	fallbackAnswer string

	metrics ports.MetricsCollector
	logger  *zap.Logger
	tracer  trace.Tracer

	// flight collapses concurrent synchronous requests for the same
	// question into one pipeline execution.
	flight singleflight.Group
}

// NewOrchestrator wires the pipeline. fallbackAnswer is the fixed text
// returned when retrieval finds nothing; it is never cached.
func NewOrchestrator(
	retriever *Retriever,
	llm ports.LLMClient,
	cache ports.AnswerCache,
	guardrail *GuardrailClassifier,
	fallbackAnswer string,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	tracer trace.Tracer,
) *Orchestrator {
	return &Orchestrator{
		retriever:      retriever,
		llm:            llm,
		cache:          cache,
		guardrail:      guardrail,
		prompts:        NewPromptBuilder(),
		fallbackAnswer: fallbackAnswer,
		metrics:        metrics,
		logger:         logger,
		tracer:         tracer,
	}
}

// Answer runs the full synchronous pipeline for one question.
//
// Short-circuit order is fixed: identity questions never touch the cache or
// the retrieval stack; cache hits never touch retrieval or generation; empty
// retrieval returns the fallback without calling the model.
func (o *Orchestrator) Answer(ctx context.Context, question string, topK int, scoreThreshold float64) (domain.AnswerResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.answer")
	defer span.End()
	start := time.Now()

	if o.guardrail.IsIdentityQuestion(question) {
		o.metrics.RecordCounter("assistant_guardrail_total", 1, map[string]string{"kind": "identity"})
		span.SetAttributes(attribute.Bool("answer.identity", true))
		return o.identityResult(), nil
	}

	if cached, ok := o.cache.Get(ctx, question); ok {
		o.metrics.RecordCounter("assistant_cache_events_total", 1, map[string]string{"event": "hit"})
		span.SetAttributes(attribute.Bool("answer.cached", true))
		return cached, nil
	}
	o.metrics.RecordCounter("assistant_cache_events_total", 1, map[string]string{"event": "miss"})

	// Collapse concurrent identical questions into one execution. The key
	// is intentionally looser than the cache key; near-duplicates still
	// benefit from the cache afterwards.
	key := strings.ToLower(strings.TrimSpace(question))
	v, err, shared := o.flight.Do(key, func() (any, error) {
		return o.answerUncached(ctx, question, topK, scoreThreshold)
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}
	result := v.(domain.AnswerResult)

	o.metrics.RecordLatency("answer", time.Since(start), map[string]string{"mode": "sync"})
	o.logger.Info("answer generated",
		zap.Int("chunks", result.ChunksRetrieved),
		zap.String("confidence", string(result.Confidence)),
		zap.Bool("shared", shared),
		zap.Duration("latency", time.Since(start)))
	return result, nil
}

// answerUncached executes retrieval and generation, writing the result back
// to the cache on success. The cache implementation applies the write
// policy; fallback and empty answers are dropped there.
func (o *Orchestrator) answerUncached(ctx context.Context, question string, topK int, scoreThreshold float64) (domain.AnswerResult, error) {
	outcome, err := o.retriever.RetrieveWithCitations(ctx, question, topK, scoreThreshold)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	if len(outcome.Items) == 0 {
		o.logger.Warn("no relevant passages found", zap.String("question", truncate(question, 80)))
		return o.fallbackResult(), nil
	}

	prompt := o.prompts.Build(FormatContext(outcome.Items), question)

	answer, err := o.llm.Complete(ctx, prompt)
	if err != nil {
		return domain.AnswerResult{}, domain.NewUpstreamError(domain.CapabilityGeneration, err)
	}

	result := domain.AnswerResult{
		Answer:            answer,
		Citations:         outcome.Citations,
		ChunksRetrieved:   len(outcome.Items),
		Confidence:        outcome.Confidence,
		AvgRetrievalScore: outcome.AvgScore,
	}
	o.cache.Put(ctx, question, result)
	return result, nil
}

// AnswerStream runs the pipeline in streaming mode. The returned channel
// yields zero or more chunk events, then exactly one citations event, then
// exactly one metadata event, then closes. On failure a single error event
// terminates the stream and nothing is cached. Cancellation of ctx stops
// event production; a cancelled request never writes to the cache.
func (o *Orchestrator) AnswerStream(ctx context.Context, question string, topK int, scoreThreshold float64) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent)

	go func() {
		defer close(events)
		ctx, span := o.tracer.Start(ctx, "orchestrator.answer_stream")
		defer span.End()
		start := time.Now()

		emit := func(ev domain.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if o.guardrail.IsIdentityQuestion(question) {
			o.metrics.RecordCounter("assistant_guardrail_total", 1, map[string]string{"kind": "identity"})
			o.emitResult(emit, o.identityResult())
			return
		}

		if cached, ok := o.cache.Get(ctx, question); ok {
			o.metrics.RecordCounter("assistant_cache_events_total", 1, map[string]string{"event": "hit"})
			o.emitResult(emit, cached)
			return
		}
		o.metrics.RecordCounter("assistant_cache_events_total", 1, map[string]string{"event": "miss"})

		outcome, err := o.retriever.RetrieveWithCitations(ctx, question, topK, scoreThreshold)
		if err != nil {
			emit(domain.ErrorEvent(err))
			return
		}

		if len(outcome.Items) == 0 {
			o.emitResult(emit, o.fallbackResult())
			return
		}

		prompt := o.prompts.Build(FormatContext(outcome.Items), question)

		var answer strings.Builder
		err = o.llm.Stream(ctx, prompt, func(fragment string) error {
			answer.WriteString(fragment)
			if !emit(domain.ChunkEvent(fragment)) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			emit(domain.ErrorEvent(domain.NewUpstreamError(domain.CapabilityGeneration, err)))
			return
		}

		if !emit(domain.CitationsEvent(outcome.Citations)) {
			return
		}
		if !emit(domain.MetadataEvent(domain.StreamMetadata{
			ChunksRetrieved:   len(outcome.Items),
			Confidence:        outcome.Confidence,
			AvgRetrievalScore: outcome.AvgScore,
		})) {
			return
		}

		// Cache only after the complete sequence was delivered.
		o.cache.Put(ctx, question, domain.AnswerResult{
			Answer:            answer.String(),
			Citations:         outcome.Citations,
			ChunksRetrieved:   len(outcome.Items),
			Confidence:        outcome.Confidence,
			AvgRetrievalScore: outcome.AvgScore,
		})

		o.metrics.RecordLatency("answer", time.Since(start), map[string]string{"mode": "stream"})
	}()

	return events
}

// emitResult streams a fully-formed result as the canonical event sequence:
// one chunk with the whole answer, then citations, then metadata.
func (o *Orchestrator) emitResult(emit func(domain.StreamEvent) bool, result domain.AnswerResult) {
	if !emit(domain.ChunkEvent(result.Answer)) {
		return
	}
	if !emit(domain.CitationsEvent(result.Citations)) {
		return
	}
	emit(domain.MetadataEvent(domain.StreamMetadata{
		ChunksRetrieved:   result.ChunksRetrieved,
		Confidence:        result.Confidence,
		AvgRetrievalScore: result.AvgRetrievalScore,
	}))
}

// identityResult is the canned answer for questions about the assistant.
func (o *Orchestrator) identityResult() domain.AnswerResult {
	return domain.AnswerResult{
		Answer:             o.guardrail.SelfDescription(),
		Citations:          []domain.Citation{},
		ChunksRetrieved:    0,
		Confidence:         domain.ConfidenceHigh,
		IsIdentityQuestion: true,
	}
}

// fallbackResult is the fixed response for empty retrieval. Low confidence
// by definition; the cache write policy excludes it.
func (o *Orchestrator) fallbackResult() domain.AnswerResult {
	return domain.AnswerResult{
		Answer:          o.fallbackAnswer,
		Citations:       []domain.Citation{},
		ChunksRetrieved: 0,
		Confidence:      domain.ConfidenceLow,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
