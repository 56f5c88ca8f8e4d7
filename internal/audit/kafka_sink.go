package audit

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"intranet/pkg/platform/audit"
)

// Producer is the subset of the Kafka producer the sink needs.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte)
}

// KafkaSink forwards events as JSON records keyed by resource id so events
// for one resource land on the same partition.
type KafkaSink struct {
	producer Producer
}

func NewKafkaSink(producer Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Send(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	key := event.ResourceID
	if key == "" {
		key = event.ID.String()
	}
	s.producer.Publish(ctx, key, payload)
	return nil
}
