package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is stamped on every payload so consumers can reject
// formats they do not understand.
const MessageVersion = 1

// Message is the payload handed to the worker for one uploaded bill.
type Message struct {
	JobID      string `json:"jobId"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage builds a versioned message stamped with the enqueue time.
func NewMessage(jobID, requestID string) Message {
	return Message{
		JobID:      jobID,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
