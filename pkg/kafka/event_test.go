package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

func TestDecodeIndexComplete(t *testing.T) {
	raw := []byte(`{"generation":"gen-00000000000000000042","dir":"data/generations/gen-00000000000000000042",` +
		`"total_docs":3,"unique_tokens":7,"completed_at":"2026-10-01T12:00:00Z"}`)

	ev, err := DecodeIndexComplete(raw)
	require.NoError(t, err)
	assert.Equal(t, "gen-00000000000000000042", ev.Generation)
	assert.Equal(t, 3, ev.TotalDocs)
	assert.Equal(t, 7, ev.UniqueTokens)
	assert.True(t, ev.CompletedAt.Equal(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)))
}

func TestDecodeIndexCompleteRejects(t *testing.T) {
	_, err := DecodeIndexComplete([]byte("not json"))
	assert.ErrorContains(t, err, "decoding index complete event")

	_, err = DecodeIndexComplete([]byte(`{"total_docs":1}`))
	assert.ErrorIs(t, err, errNoGeneration)
}

func TestPublishRejectsEventWithoutGeneration(t *testing.T) {
	p := NewProducer(config.KafkaConfig{
		Brokers: []string{"127.0.0.1:1"},
		Topics:  config.KafkaTopics{IndexComplete: "index.complete"},
	}, resilience.RetryConfig{MaxAttempts: 1})
	defer p.Close()
	assert.ErrorIs(t, p.PublishIndexComplete(context.Background(), IndexComplete{TotalDocs: 1}), errNoGeneration)
}
