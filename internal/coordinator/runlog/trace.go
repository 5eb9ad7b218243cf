package runlog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceInfo holds the OTel identifiers extracted from a context.
type TraceInfo struct {
	TraceID string
	SpanID  string
}

// ExtractTraceInfo reads the active span from ctx. Both fields are empty when
// ctx carries no valid span.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// NewEntry builds an Entry stamped with the trace of ctx.
//
//	entry := runlog.NewEntry(ctx, runID, orderID, customerID, "LOCKED", "", "", now)
//	_ = repo.Save(ctx, entry)
func NewEntry(ctx context.Context, runID, orderID, customerID, state, reason, payload string, now time.Time) *Entry {
	ti := ExtractTraceInfo(ctx)
	return &Entry{
		RunID:      runID,
		OrderID:    orderID,
		CustomerID: customerID,
		State:      state,
		Reason:     reason,
		Payload:    payload,
		TraceID:    ti.TraceID,
		SpanID:     ti.SpanID,
		UpdatedAt:  now.UTC(),
	}
}
