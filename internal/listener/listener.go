// Package listener consumes order events from Kafka and owns their
// acknowledgment.
//
// Every fetched message is acknowledged exactly once, whatever the pipeline
// outcome, so one bad event never blocks its partition. Acknowledging commits
// the offset only once every earlier offset of the same partition was
// acknowledged too.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/order-worker/internal/coordinator"
	"github.com/jcmexdev/order-worker/internal/domain"
	"github.com/jcmexdev/order-worker/internal/pkg/telemetry"
)

const tracerName = "github.com/jcmexdev/order-worker/internal/listener"

// Dispositions counted per message besides the Redeliverer ones.
const (
	DispositionProcessed = "processed"
	DispositionFailed    = "failed"
	DispositionMalformed = "malformed"
	DispositionPanic     = "panic"
)

// Source is satisfied by *kafka.Reader.
type Source interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Processor runs the pipeline for one decoded event.
type Processor interface {
	Process(ctx context.Context, evt domain.InboundOrderEvent) coordinator.Outcome
}

type Config struct {
	// Concurrency bounds the messages processed at the same time.
	Concurrency int
	// ProcessTimeout bounds one message, including the time spent draining
	// in-flight messages during shutdown.
	ProcessTimeout time.Duration
}

type Listener struct {
	source      Source
	processor   Processor
	redeliverer *Redeliverer
	metrics     *telemetry.Metrics
	cfg         Config
	tracker     *offsetTracker
	tracer      trace.Tracer

	commitMu  sync.Mutex
	committed map[int]int64
}

type Option func(*Listener)

// WithRedeliverer enables republishing of failed events.
func WithRedeliverer(r *Redeliverer) Option {
	return func(l *Listener) { l.redeliverer = r }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

func New(source Source, processor Processor, cfg Config, opts ...Option) *Listener {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 2 * time.Minute
	}
	l := &Listener{
		source:    source,
		processor: processor,
		cfg:       cfg,
		tracker:   newOffsetTracker(),
		tracer:    otel.Tracer(tracerName),
		committed: make(map[int]int64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run fetches until ctx is cancelled or the source is closed, then waits for
// in-flight messages. It returns nil on a clean stop.
func (l *Listener) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "listener started", "concurrency", l.cfg.Concurrency)

	var g errgroup.Group
	g.SetLimit(l.cfg.Concurrency)

	var runErr error
	for {
		msg, err := l.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				runErr = fmt.Errorf("listener: fetch: %w", err)
			}
			break
		}

		l.tracker.track(msg)
		g.Go(func() error {
			l.handle(ctx, msg)
			return nil
		})
	}

	_ = g.Wait()
	slog.InfoContext(ctx, "listener stopped", "error", runErr)
	return runErr
}

// handle processes one message and always acknowledges it. The work context
// outlives ctx so that shutdown drains instead of failing in-flight runs.
func (l *Listener) handle(ctx context.Context, msg kafka.Message) {
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ProcessTimeout)
	defer cancel()

	workCtx = contextFromMessage(workCtx, msg)
	workCtx, span := l.tracer.Start(workCtx, msg.Topic+" process", trace.WithSpanKind(trace.SpanKindConsumer), trace.WithAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.name", msg.Topic),
		attribute.Int("messaging.kafka.destination.partition", msg.Partition),
		attribute.Int64("messaging.kafka.message.offset", msg.Offset),
	))
	defer span.End()

	defer l.ack(workCtx, msg)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(workCtx, "panic while handling message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			l.metrics.MessageHandled(DispositionPanic)
		}
	}()

	l.metrics.MessageHandled(l.dispatch(workCtx, msg))
}

func (l *Listener) dispatch(ctx context.Context, msg kafka.Message) string {
	evt, err := domain.DecodeInboundOrderEvent(msg.Value)
	if err != nil {
		slog.WarnContext(ctx, "discarding malformed message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"payload", string(msg.Value),
			"error", err,
		)
		if l.redeliverer != nil {
			l.redeliverer.Handle(ctx, msg, err, "malformed message")
		}
		return DispositionMalformed
	}

	out := l.processor.Process(ctx, evt)
	if out.Succeeded() {
		return DispositionProcessed
	}

	slog.ErrorContext(ctx, "order event failed, acknowledging",
		"order_id", evt.OrderID,
		"customer_id", evt.CustomerID,
		"reason", out.Reason,
		"retryable", out.Retryable(),
		"run_id", out.RunID,
		"error", out.Err,
	)
	if l.redeliverer == nil {
		return DispositionFailed
	}
	return l.redeliverer.Handle(ctx, msg, out.Err, out.Reason)
}

// ack commits the highest contiguous acknowledged offset of msg's partition.
func (l *Listener) ack(ctx context.Context, msg kafka.Message) {
	commit, ok := l.tracker.ack(msg)
	if !ok {
		return
	}

	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	if last, seen := l.committed[commit.Partition]; seen && commit.Offset <= last {
		return
	}
	if err := l.source.CommitMessages(ctx, commit); err != nil {
		slog.ErrorContext(ctx, "offset commit failed",
			"partition", commit.Partition,
			"offset", commit.Offset,
			"error", err,
		)
		return
	}
	l.committed[commit.Partition] = commit.Offset
	slog.DebugContext(ctx, "offset committed", "partition", commit.Partition, "offset", commit.Offset)
}
