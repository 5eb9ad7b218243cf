package listener

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig describes the consumer group and the producer used for
// redelivery.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	GroupID           string
	MaxPollRecords    int
	AutoOffsetReset   string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	FetchMaxWait      time.Duration
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewReader returns a consumer group reader with manual commits: offsets are
// only committed through CommitMessages.
func NewReader(cfg KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             cfg.Topic,
		GroupID:           cfg.GroupID,
		MinBytes:          1,
		MaxBytes:          10e6,
		MaxWait:           cfg.FetchMaxWait,
		QueueCapacity:     cfg.MaxPollRecords,
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StartOffset:       startOffset(cfg.AutoOffsetReset),
		CommitInterval:    0,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			slog.Error("kafka reader", "detail", fmt.Sprintf(msg, args...))
		}),
	})
}

// NewWriter returns a producer that routes each message by its own Topic.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			slog.Error("kafka writer", "detail", fmt.Sprintf(msg, args...))
		}),
	}
}

func startOffset(reset string) int64 {
	if strings.EqualFold(reset, "latest") {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}
