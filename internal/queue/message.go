package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// TypeImportCompleted is published after an import's feedback rows are committed.
const TypeImportCompleted = "import.completed"

// CurrentVersion is the payload version written by Send.
const CurrentVersion = 1

var ErrMissingImportID = errors.New("missing import id")

// Client publishes import lifecycle messages. The import registry treats it
// as optional and never fails an import because a send failed.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Message is the payload sent to post-import consumers.
type Message struct {
	Type       string    `json:"type"`
	ImportID   string    `json:"importId"`
	ProfileID  string    `json:"profileId,omitempty"`
	WindowFrom time.Time `json:"windowFrom"`
	WindowTo   time.Time `json:"windowTo"`
	RequestID  string    `json:"requestId,omitempty"`
	EnqueuedAt string    `json:"enqueuedAt"`
	Version    int       `json:"version"`
}

// Validate reports payloads a consumer cannot act on.
func (m Message) Validate() error {
	if strings.TrimSpace(m.ImportID) == "" {
		return ErrMissingImportID
	}
	return nil
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
