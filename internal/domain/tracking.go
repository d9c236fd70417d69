package domain

import (
	"encoding/json"
	"time"
)

// TrackingEvent is an engagement or delivery event reported by the provider
// webhook for a previously sent message.
type TrackingEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType"`
	MessageID string          `json:"messageId"`
	Recipient string          `json:"recipient"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"data,omitempty"`
}
