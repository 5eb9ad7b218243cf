package listener

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/jcmexdev/order-worker/internal/pkg/reqctx"
)

// headerCarrier adapts Kafka headers to propagation.TextMapCarrier.
type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// contextFromMessage extracts the W3C trace context and the request id.
// A message without x-request-id gets a fresh one.
func contextFromMessage(ctx context.Context, msg kafka.Message) context.Context {
	headers := msg.Headers
	carrier := headerCarrier{headers: &headers}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)
	return reqctx.WithRequestID(ctx, carrier.Get(reqctx.HeaderXRequestID))
}

// injectContext writes the trace context and request id of ctx into headers.
func injectContext(ctx context.Context, headers *[]kafka.Header) {
	carrier := headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if id := reqctx.RequestID(ctx); id != "" {
		carrier.Set(reqctx.HeaderXRequestID, id)
	}
}

// redeliveryAttempt reads x-redelivery-attempt, treating absent or invalid
// values as zero.
func redeliveryAttempt(headers []kafka.Header) int {
	v := headerCarrier{headers: &headers}.Get(reqctx.HeaderRedeliveryAttempt)
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
