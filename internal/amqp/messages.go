package amqp

import (
	"encoding/json"
	"time"
)

// EntryCommittedMessage announces one newly appended ledger entry. It is
// intentionally thin: id plus the bucketing fields the export worker
// needs to know which window to rebuild. The worker reads everything else
// from the store.
type EntryCommittedMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	WorkDate  string    `json:"work_date"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryCommittedMessage(id, userID int64, workDate string) *EntryCommittedMessage {
	return &EntryCommittedMessage{
		ID:        id,
		UserID:    userID,
		WorkDate:  workDate,
		Timestamp: time.Now(),
	}
}

func (m *EntryCommittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryCommittedMessageFromJSON(data []byte) (*EntryCommittedMessage, error) {
	var msg EntryCommittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
