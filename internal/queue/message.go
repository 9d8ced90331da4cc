package queue

import (
	"context"
	"encoding/json"
)

// Client enqueues task messages for the worker. Delivery guarantees follow
// the backend: SQS redelivers after the visibility timeout, redis hands each
// message to exactly one consumer, so retries re-enqueue explicitly.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Message is the payload sent to downstream queue consumers.
type Message struct {
	TaskID     string `json:"taskId"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
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
