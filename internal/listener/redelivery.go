package listener

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jcmexdev/order-worker/internal/domain"
	"github.com/jcmexdev/order-worker/internal/pkg/reqctx"
)

// Dispositions reported by Redeliverer.Handle.
const (
	DispositionRedelivered   = "redelivered"
	DispositionDeadLettered  = "dead_lettered"
	DispositionPublishFailed = "publish_failed"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Redeliverer republishes failed events. Retryable failures go back to the
// retry topic with x-redelivery-attempt incremented until maxRedeliveries is
// reached. Everything else goes to the dead-letter topic.
type Redeliverer struct {
	writer          MessageWriter
	retryTopic      string
	deadLetterTopic string
	maxRedeliveries int
}

func NewRedeliverer(writer MessageWriter, retryTopic, deadLetterTopic string, maxRedeliveries int) *Redeliverer {
	return &Redeliverer{
		writer:          writer,
		retryTopic:      retryTopic,
		deadLetterTopic: deadLetterTopic,
		maxRedeliveries: maxRedeliveries,
	}
}

// Handle publishes msg according to the failure and returns the disposition.
func (r *Redeliverer) Handle(ctx context.Context, msg kafka.Message, failure error, reason string) string {
	attempt := redeliveryAttempt(msg.Headers)

	out := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: copyHeaders(msg.Headers),
		Time:    time.Now().UTC(),
	}
	injectContext(ctx, &out.Headers)
	carrier := headerCarrier{headers: &out.Headers}

	disposition := DispositionDeadLettered
	if domain.Retryable(failure) && attempt < r.maxRedeliveries {
		disposition = DispositionRedelivered
		out.Topic = r.retryTopic
		carrier.Set(reqctx.HeaderRedeliveryAttempt, strconv.Itoa(attempt+1))
	} else {
		out.Topic = r.deadLetterTopic
		carrier.Set(reqctx.HeaderFailureReason, reason)
	}

	if err := r.writer.WriteMessages(ctx, out); err != nil {
		slog.ErrorContext(ctx, "failed to republish message",
			"topic", out.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"reason", reason,
			"payload", string(msg.Value),
			"error", err,
		)
		return DispositionPublishFailed
	}

	slog.InfoContext(ctx, fmt.Sprintf("message %s", disposition),
		"topic", out.Topic,
		"attempt", attempt,
		"reason", reason,
	)
	return disposition
}

func copyHeaders(headers []kafka.Header) []kafka.Header {
	out := make([]kafka.Header, len(headers))
	copy(out, headers)
	return out
}
