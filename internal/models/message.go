package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Message is the unit accepted by the ingress role and stored by the messenger.
type Message struct {
	ID        string `json:"id" msgpack:"id"`
	Content   string `json:"content" msgpack:"content"`
	Sender    string `json:"sender" msgpack:"sender"`
	Timestamp int64  `json:"timestamp" msgpack:"timestamp"`
}

func NewMessage(content, sender string) *Message {
	return &Message{
		Content:   strings.TrimSpace(content),
		Sender:    strings.TrimSpace(sender),
		Timestamp: time.Now().Unix(),
	}
}

// RelayEnvelope is what travels between pipeline hops.
type RelayEnvelope struct {
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id"`
}

// StoredRecord is a terminal display entry. Records are immutable once appended.
type StoredRecord struct {
	DisplayID  string          `json:"display_id" msgpack:"display_id"`
	RequestID  string          `json:"request_id,omitempty" msgpack:"request_id"`
	Payload    json.RawMessage `json:"payload" msgpack:"payload"`
	ReceivedAt time.Time       `json:"received_at" msgpack:"received_at"`
}

func NewStoredRecord(displayID, requestID string, payload []byte) StoredRecord {
	// own the bytes so callers cannot mutate a stored record
	p := make(json.RawMessage, len(payload))
	copy(p, payload)
	return StoredRecord{
		DisplayID:  displayID,
		RequestID:  requestID,
		Payload:    p,
		ReceivedAt: time.Now().UTC(),
	}
}

// Clone returns a copy that shares no memory with r.
func (r StoredRecord) Clone() StoredRecord {
	c := r
	if r.Payload != nil {
		c.Payload = make(json.RawMessage, len(r.Payload))
		copy(c.Payload, r.Payload)
	}
	return c
}
