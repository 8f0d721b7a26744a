package model

import (
	"encoding/json"
	"time"
)

// Event is a sequence-numbered notification emitted by an application.
type Event struct {
	ApplicationID string          `json:"applicationId"`
	Sequence      uint64          `json:"sequence"`
	ChainID       string          `json:"chainId,omitempty"`
	Height        uint64          `json:"height,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	ReceivedAt    time.Time       `json:"receivedAt"`
}
