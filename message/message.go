package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned when an inbound frame is neither a message object nor a list of message objects.
var ErrMalformedFrame = errors.New("malformed frame")

type Status string

const (
	StatusUnset   Status = ""
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

const (
	ActionAuthenticatePlugin = "plugin/authenticate"
	ActionSubscribeTopic     = "topic/subscribe"
	ActionUnsubscribeTopic   = "topic/unsubscribe"
)

var nullPayload = json.RawMessage("null")

type Message struct {
	ID      string          `json:"id,omitempty"`
	Action  string          `json:"action,omitempty"`
	Status  Status          `json:"status,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Topic   string          `json:"topic,omitempty"`
}

// New builds a message for the given action, JSON-encoding the payload.
func New(action string, payload any) (Message, error) {
	m := Message{Action: action}
	if payload == nil {
		return m, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", action, err)
	}
	m.Payload = b
	return m, nil
}

// Failed reports whether the proxy rejected the request this message answers.
func (m Message) Failed() bool {
	return m.Status == StatusFailed
}

// FailureMessage returns the remote error text of a failed response.
// If the payload carries no message, the raw payload is returned instead.
func (m Message) FailureMessage() string {
	var p FailurePayload
	if err := m.DecodePayload(&p); err == nil && p.Message != "" {
		return p.Message
	}
	if len(m.Payload) == 0 || bytes.Equal(m.Payload, nullPayload) {
		return ""
	}
	return string(m.Payload)
}

func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return json.Unmarshal(nullPayload, v)
	}
	return json.Unmarshal(m.Payload, v)
}

// DecodeFrame parses one inbound WebSocket frame into its messages, preserving their order.
func DecodeFrame(b []byte) ([]Message, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}

	var raws []json.RawMessage
	switch b[0] {
	case '[':
		if err := json.Unmarshal(b, &raws); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedFrame, err)
		}
	case '{':
		raws = []json.RawMessage{b}
	default:
		return nil, fmt.Errorf("%w: expected object or array", ErrMalformedFrame)
	}

	msgs := make([]Message, 0, len(raws))
	for i, raw := range raws {
		m, err := normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: message %d: %s", ErrMalformedFrame, i, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func normalize(raw json.RawMessage) (Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Message{}, errors.New("not an object")
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, err
	}
	if len(m.Payload) == 0 {
		m.Payload = nullPayload
	}
	return m, nil
}
