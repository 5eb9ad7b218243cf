package listener

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-worker/internal/coordinator"
	"github.com/jcmexdev/order-worker/internal/domain"
	"github.com/jcmexdev/order-worker/internal/pkg/reqctx"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func header(msg kafka.Message, key string) string {
	return headerCarrier{headers: &msg.Headers}.Get(key)
}

func TestRedeliverer_RetryableGoesBackToRetryTopic(t *testing.T) {
	w := &recordingWriter{}
	r := NewRedeliverer(w, "orders", "orders-dlq", 3)

	msg := orderMsg(0, 5, validOrder)
	msg.Headers = []kafka.Header{{Key: reqctx.HeaderRedeliveryAttempt, Value: []byte("1")}}

	disposition := r.Handle(context.Background(), msg, domain.ErrLockUnavailable, coordinator.ReasonLockNotAcquired)

	assert.Equal(t, DispositionRedelivered, disposition)
	require.Len(t, w.msgs, 1)
	out := w.msgs[0]
	assert.Equal(t, "orders", out.Topic)
	assert.Equal(t, msg.Key, out.Key)
	assert.Equal(t, msg.Value, out.Value)
	assert.Equal(t, "2", header(out, reqctx.HeaderRedeliveryAttempt))
	assert.Empty(t, header(out, reqctx.HeaderFailureReason))
	assert.Equal(t, "1", header(msg, reqctx.HeaderRedeliveryAttempt), "original headers untouched")
}

func TestRedeliverer_ExhaustedRetriesAreDeadLettered(t *testing.T) {
	w := &recordingWriter{}
	r := NewRedeliverer(w, "orders", "orders-dlq", 3)

	msg := orderMsg(0, 5, validOrder)
	msg.Headers = []kafka.Header{{Key: reqctx.HeaderRedeliveryAttempt, Value: []byte("3")}}

	disposition := r.Handle(context.Background(), msg, domain.ErrPersistence, coordinator.ReasonPersistenceFailed)

	assert.Equal(t, DispositionDeadLettered, disposition)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "orders-dlq", w.msgs[0].Topic)
	assert.Equal(t, coordinator.ReasonPersistenceFailed, header(w.msgs[0], reqctx.HeaderFailureReason))
}

func TestRedeliverer_TerminalFailureIsDeadLettered(t *testing.T) {
	w := &recordingWriter{}
	r := NewRedeliverer(w, "orders", "orders-dlq", 3)

	disposition := r.Handle(context.Background(), orderMsg(0, 1, validOrder), domain.ErrCustomerInactive, coordinator.ReasonCustomerInactive)

	assert.Equal(t, DispositionDeadLettered, disposition)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "orders-dlq", w.msgs[0].Topic)
}

func TestRedeliverer_PublishFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	r := NewRedeliverer(w, "orders", "orders-dlq", 3)

	disposition := r.Handle(context.Background(), orderMsg(0, 1, validOrder), domain.ErrLockUnavailable, coordinator.ReasonLockNotAcquired)
	assert.Equal(t, DispositionPublishFailed, disposition)
}

func TestRun_WithRedelivererStillCommits(t *testing.T) {
	w := &recordingWriter{}
	src := newFakeSource(
		orderMsg(0, 0, `garbage`),
		orderMsg(0, 1, validOrder),
	)
	l := New(src, processorFunc(func(context.Context, domain.InboundOrderEvent) coordinator.Outcome {
		return coordinator.Outcome{Err: domain.ErrUpstreamTransient, Reason: coordinator.ReasonCustomerFetchFailed, State: coordinator.StateFailed}
	}), Config{Concurrency: 1}, WithRedeliverer(NewRedeliverer(w, "orders", "orders-dlq", 3)))

	require.NoError(t, l.Run(context.Background()))

	require.Len(t, w.msgs, 2)
	topics := map[string]int{}
	for _, m := range w.msgs {
		topics[m.Topic]++
	}
	assert.Equal(t, 1, topics["orders-dlq"])
	assert.Equal(t, 1, topics["orders"])

	last, ok := src.lastCommit(0)
	require.True(t, ok)
	assert.Equal(t, int64(1), last)
}

func TestTraceContextRoundTripsThroughHeaders(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = reqctx.WithRequestID(ctx, "req-7")

	var headers []kafka.Header
	injectContext(ctx, &headers)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headerCarrier{headers: &headers}.Get("traceparent"))

	got := contextFromMessage(context.Background(), kafka.Message{Headers: headers})
	assert.Equal(t, traceID, trace.SpanContextFromContext(got).TraceID())
	assert.Equal(t, "req-7", reqctx.RequestID(got))
}

func TestRedeliveryAttempt(t *testing.T) {
	assert.Equal(t, 0, redeliveryAttempt(nil))
	assert.Equal(t, 0, redeliveryAttempt([]kafka.Header{{Key: reqctx.HeaderRedeliveryAttempt, Value: []byte("x")}}))
	assert.Equal(t, 2, redeliveryAttempt([]kafka.Header{{Key: reqctx.HeaderRedeliveryAttempt, Value: []byte("2")}}))
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, ParseBrokers(""))
}

func TestStartOffset(t *testing.T) {
	assert.Equal(t, kafka.LastOffset, startOffset("LATEST"))
	assert.Equal(t, kafka.FirstOffset, startOffset("earliest"))
}
