package amqp

import (
	"testing"
	"time"
)

func TestNewTrainModelMessage(t *testing.T) {
	msg := NewTrainModelMessage(42)

	if msg.UserID != 42 {
		t.Errorf("NewTrainModelMessage() UserID = %v, want 42", msg.UserID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("NewTrainModelMessage() Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewTrainModelMessage() Timestamp should be recent")
	}
}

func TestTrainModelMessage_JSON(t *testing.T) {
	timestamp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &TrainModelMessage{
		UserID:    42,
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsedMsg, err := TrainModelMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("TrainModelMessageFromJSON() error = %v", err)
	}

	if parsedMsg.UserID != msg.UserID {
		t.Errorf("Parsed UserID = %v, want %v", parsedMsg.UserID, msg.UserID)
	}
	if !parsedMsg.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsedMsg.Timestamp, msg.Timestamp)
	}
}

func TestTrainModelMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"user_id": "not_a_number"}`)

	_, err := TrainModelMessageFromJSON(invalidJSON)
	if err == nil {
		t.Error("TrainModelMessageFromJSON() should fail with invalid JSON")
	}
}
