package amqp

import (
	"encoding/json"
	"time"
)

// TrainModelMessage asks the worker to retrain one user's categorization
// model. It carries only the user ID; the worker reads the corpus from the
// database.
type TrainModelMessage struct {
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTrainModelMessage creates a training request for a user.
func NewTrainModelMessage(userID int64) *TrainModelMessage {
	return &TrainModelMessage{
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TrainModelMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func TrainModelMessageFromJSON(data []byte) (*TrainModelMessage, error) {
	var msg TrainModelMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
