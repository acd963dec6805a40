// Package adapter implements the identity app ports: Redis counters,
// Postgres and DynamoDB account and OTP stores, email senders and the
// AWS-backed signing key store.
package adapter

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("identity/adapter")

// startSpan opens a client span tagged with the store system and operation.
func startSpan(ctx context.Context, name, system, operation string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", system),
		attribute.String("db.operation", operation),
	)
	return ctx, span
}

// failSpan records err on span and returns it.
func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
