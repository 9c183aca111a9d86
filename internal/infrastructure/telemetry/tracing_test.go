package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/eksporyuk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "credit",
		telemetry.WithAttribute(telemetry.SpanAttrWalletID, uuid.MustParse("6f1c2b47-5c47-4a8b-9d36-4b1f0c7f9a10")),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ledger.credit", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())

	attrs := spans[0].Attributes()
	require.Len(t, attrs, 1)
	assert.Equal(t, "6f1c2b47-5c47-4a8b-9d36-4b1f0c7f9a10", attrs[0].Value.AsString())
}

func TestSetAttributes_SkipsNonStringKeys(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "payout.request")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, "60000",
		42, "ignored",
		"count", 3,
		"dangling",
	)
	span.End()

	attrs := sr.Ended()[0].Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "amount", string(attrs[0].Key))
	assert.Equal(t, int64(3), attrs[1].Value.AsInt64())
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "executor.execute")
	telemetry.RecordError(span, errors.New("smtp timeout"))
	telemetry.RecordError(span, nil)
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "smtp timeout", s.Status().Description)
	assert.Len(t, s.Events(), 1)
}

func TestGetTraceID(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))

	setupTestTracer(t)
	ctx, span := telemetry.StartSpan(context.Background(), "scheduler.trigger")
	defer span.End()
	assert.Len(t, telemetry.GetTraceID(ctx), 32)
}
