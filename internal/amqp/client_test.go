package amqp

import (
	"testing"
	"time"
)

func TestNewEntryCommittedMessage(t *testing.T) {
	msg := NewEntryCommittedMessage(12, 42, "2024-06-12")

	if msg.ID != 12 || msg.UserID != 42 || msg.WorkDate != "2024-06-12" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("timestamp should be set")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Fatal("timestamp should be recent")
	}
}

func TestEntryCommittedMessageJSON(t *testing.T) {
	ts := time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)
	msg := &EntryCommittedMessage{ID: 12, UserID: 42, WorkDate: "2024-06-12", Timestamp: ts}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := EntryCommittedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.ID != msg.ID || parsed.UserID != msg.UserID || parsed.WorkDate != msg.WorkDate {
		t.Fatalf("round trip lost fields: %+v", parsed)
	}
	if !parsed.Timestamp.Equal(ts) {
		t.Fatalf("timestamp = %v, want %v", parsed.Timestamp, ts)
	}
}

func TestEntryCommittedMessageInvalidJSON(t *testing.T) {
	if _, err := EntryCommittedMessageFromJSON([]byte(`{"id": "nope"}`)); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}
