package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message is one inbound push frame: a JSON object with at least a type.
type Message struct {
	Type      string          `json:"type"`
	TicketID  string          `json:"ticketId,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	// Raw is the undecoded frame.
	Raw json.RawMessage `json:"-"`
}

var errMissingType = errors.New("push message has no type")

// DecodeMessage parses a text frame. Frames that are not JSON objects or
// lack a type are rejected.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode push message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, errMissingType
	}
	msg.Raw = append(json.RawMessage(nil), data...)
	return msg, nil
}
