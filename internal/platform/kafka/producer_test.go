package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/platform/config"
)

func TestNewProducerDisabledWithoutBrokers(t *testing.T) {
	p, err := NewProducer(context.Background(), config.KafkaConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNewProducerRequiresTopic(t *testing.T) {
	_, err := NewProducer(context.Background(), config.KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.Error(t, err)
}
