package audit

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/pkg/platform/audit"
)

type fakeProducer struct {
	keys   []string
	values [][]byte
}

func (f *fakeProducer) Publish(_ context.Context, key string, value []byte) {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
}

func TestKafkaSink(t *testing.T) {
	producer := &fakeProducer{}
	sink := NewKafkaSink(producer)
	id := uuid.New()

	require.NoError(t, sink.Send(context.Background(), audit.Event{ID: id, Action: "news_published", Resource: "news", ResourceID: "n-1"}))
	require.NoError(t, sink.Send(context.Background(), audit.Event{ID: id, Action: "logged_out"}))

	assert.Equal(t, []string{"n-1", id.String()}, producer.keys)
	var decoded audit.Event
	require.NoError(t, json.Unmarshal(producer.values[0], &decoded))
	assert.Equal(t, "news_published", decoded.Action)
	assert.Equal(t, id, decoded.ID)
}
