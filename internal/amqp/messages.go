package amqp

import (
	"encoding/json"
	"time"

	"ecomstudio/internal/core"
)

// LedgerRecordedMessage announces a newly stored ledger transaction. Amount
// is the signed two-decimal rendering; consumers that need the event itself
// read it back from the ledger.
type LedgerRecordedMessage struct {
	TransactionID string         `json:"transactionId"`
	UserID        string         `json:"userId"`
	Direction     core.Direction `json:"direction"`
	Amount        string         `json:"amount"`
	OccurredAt    time.Time      `json:"occurredAt"`
	Timestamp     time.Time      `json:"timestamp"`
}

func NewLedgerRecordedMessage(e core.LedgerEvent) *LedgerRecordedMessage {
	return &LedgerRecordedMessage{
		TransactionID: e.ID,
		UserID:        e.UserID,
		Direction:     e.Direction(),
		Amount:        core.FormatCredits(e.Amount),
		OccurredAt:    e.OccurredAt,
		Timestamp:     time.Now(),
	}
}

func (m *LedgerRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerRecordedMessageFromJSON(data []byte) (*LedgerRecordedMessage, error) {
	var msg LedgerRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
