package ai

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracedBackend struct {
	inner  Backend
	tracer trace.Tracer
}

// WithTracing records one "ai.complete" span per Complete call on the global
// tracer provider. Without a configured provider the spans are no-ops.
func WithTracing(b Backend) Backend {
	return &tracedBackend{inner: b, tracer: otel.Tracer("ctrlscan-autofix/ai")}
}

func (t *tracedBackend) Name() string { return t.inner.Name() }

func (t *tracedBackend) IsAvailable(ctx context.Context) bool {
	return t.inner.IsAvailable(ctx)
}

func (t *tracedBackend) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "ai.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.backend", t.inner.Name()),
		attribute.Int("ai.prompt_chars", len(prompt)),
	)

	out, err := t.inner.Complete(ctx, prompt)
	switch {
	case errors.Is(err, ErrNoResult):
		span.SetAttributes(attribute.Bool("ai.no_result", true))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetAttributes(attribute.Int("ai.completion_chars", len(out)))
	}
	return out, err
}
