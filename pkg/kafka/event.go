package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// IndexComplete announces that the indexer published a new generation.
type IndexComplete struct {
	Generation   string    `json:"generation"`
	Dir          string    `json:"dir"`
	TotalDocs    int       `json:"total_docs"`
	UniqueTokens int       `json:"unique_tokens"`
	CompletedAt  time.Time `json:"completed_at"`
}

var errNoGeneration = errors.New("index complete event without generation")

func (ev IndexComplete) validate() error {
	if ev.Generation == "" {
		return errNoGeneration
	}
	return nil
}

// DecodeIndexComplete parses a message value. Events that do not name a
// generation are rejected.
func DecodeIndexComplete(value []byte) (IndexComplete, error) {
	var ev IndexComplete
	if err := json.Unmarshal(value, &ev); err != nil {
		return ev, fmt.Errorf("decoding index complete event: %w", err)
	}
	if err := ev.validate(); err != nil {
		return ev, err
	}
	return ev, nil
}
