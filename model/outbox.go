package model

import "time"

// OutboxEntry is a durable record of a transfer that has not yet received an
// authoritative result from the server. TransferID equals Payload.ID and is
// the idempotency key. The entry is removed the moment the server returns a
// terminal success or failure for that id.
type OutboxEntry struct {
	TransferID string    `json:"transfer_id"`
	Payload    Transfer  `json:"payload"`
	Attempts   int       `json:"attempts"`
	Priority   int       `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	BatchSuccess = "success"
	BatchFailed  = "failed"
)

// BatchResult is the per-item outcome of a sync batch. Results are matched
// to submitted transfers by ID, never by position.
type BatchResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
