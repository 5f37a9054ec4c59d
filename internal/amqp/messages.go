package amqp

import (
	"encoding/json"
	"time"
)

// OperationSyncMessage is a lightweight notification that an operation changed.
// It carries only the identifier and the action; the worker fetches the full
// row from local storage before pushing it upstream.
type OperationSyncMessage struct {
	Entity    string    `json:"entity"`
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOperationSyncMessage creates a sync message for one operation change.
func NewOperationSyncMessage(id, action string) *OperationSyncMessage {
	return &OperationSyncMessage{
		Entity:    "operation",
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *OperationSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OperationSyncMessageFromJSON creates a message from JSON bytes
func OperationSyncMessageFromJSON(data []byte) (*OperationSyncMessage, error) {
	var msg OperationSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
