package contracts

import (
	"encoding/json"
	"fmt"
)

// JobMessage is the logical body of every queued job. Queues use different
// subsets of its fields; each worker validates the fields it requires.
type JobMessage struct {
	EventID    string          `json:"event_id,omitempty"`
	EventType  string          `json:"event_type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt string          `json:"received_at,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Type       string          `json:"type,omitempty"`
	Addressee  string          `json:"addressee,omitempty"`
	Template   string          `json:"template,omitempty"`
	Data       map[string]any  `json:"data,omitempty"`
}

// ParseJobMessage deserializes a raw message body. A failure is terminal for
// every worker except the transient one, which swallows it.
func ParseJobMessage(body []byte) (*JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return &msg, nil
}

// HasPayload reports whether the message carries a non-empty inner payload.
func (m *JobMessage) HasPayload() bool {
	if len(m.Payload) == 0 {
		return false
	}
	switch string(m.Payload) {
	case "null", `""`, "{}":
		return false
	}
	return true
}

// PayloadString returns the payload as a string. JSON string payloads are
// unquoted; object payloads are returned as their raw JSON text.
func (m *JobMessage) PayloadString() string {
	if len(m.Payload) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Payload, &s); err == nil {
		return s
	}
	return string(m.Payload)
}

// Email is a pre-rendered email ready for delivery.
type Email struct {
	To       string         `json:"to,omitempty"`
	Subject  string         `json:"subject,omitempty"`
	Body     string         `json:"body,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}
