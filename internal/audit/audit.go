package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is one security-relevant occurrence: every login, refresh, logout or
// password operation is recorded, success or not.
type Event struct {
	Type      string         `json:"type"`
	UserID    uint           `json:"user_id,omitempty"`
	Email     string         `json:"email,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Success   bool           `json:"success"`
	Detail    map[string]any `json:"detail,omitempty"`
	At        time.Time      `json:"at"`
}

type Sink interface {
	Log(ctx context.Context, e Event) error
}

const Topic = "audit_events"

type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(address string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(address),
			Topic:        Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 100 * time.Millisecond,
		},
	}
}

func (s *KafkaSink) Log(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprint(e.UserID)),
		Value: data,
	}); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Nop discards events. Used when no broker is configured and in tests.
type Nop struct{}

func (Nop) Log(context.Context, Event) error { return nil }
