package model

import "time"

type TransferStatus string

const (
	// StatusPending is the single pre-terminal status. Whether a transfer
	// originated offline is carried by Transfer.Offline, never by an extra
	// status value.
	StatusPending   TransferStatus = "pending"
	StatusCompleted TransferStatus = "completed"
	StatusFailed    TransferStatus = "failed"
)

// Terminal reports whether no further status transitions are possible.
func (s TransferStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type TransferKind string

const (
	KindTransfer   TransferKind = "transfer"
	KindPayment    TransferKind = "payment"
	KindWithdrawal TransferKind = "withdrawal"
	KindDeposit    TransferKind = "deposit"
)

// Transfer is the canonical unit of value movement. ID is client-generated,
// globally unique, and acts as the idempotency key for the whole lifecycle
// of the transfer: it is assigned exactly once and never regenerated on
// retry.
type Transfer struct {
	ID              string         `json:"id" validate:"required"`
	FromAccountID   string         `json:"from_account_id" validate:"required"`
	ToAccountNumber string         `json:"to_account_number" validate:"required"`
	ToRoutingCode   string         `json:"to_routing_code" validate:"required"`
	ToBranch        string         `json:"to_branch" validate:"required"`
	ToAccountID     string         `json:"to_account_id,omitempty"` // resolved server-side
	Amount          int64          `json:"amount" validate:"required,gt=0"`
	Kind            TransferKind   `json:"kind" validate:"required,oneof=transfer payment withdrawal deposit"`
	Description     string         `json:"description,omitempty"`
	Status          TransferStatus `json:"status"`
	Offline         bool           `json:"offline"`
	// SenderPIN travels with the request for server-side verification and is
	// persisted client-side only inside the encrypted blob. The server keeps
	// the bcrypt hash, never this value.
	SenderPIN       string    `json:"pin,omitempty" validate:"required,len=4,numeric"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
	ClientTimestamp time.Time `json:"client_timestamp"`
}

// HistoryItem is one row of the paginated transfer history, joined with
// counterparty display data.
type HistoryItem struct {
	ID                string         `json:"id"`
	FromAccountID     string         `json:"from_account_id"`
	ToAccountID       string         `json:"to_account_id"`
	Amount            int64          `json:"amount"`
	Kind              TransferKind   `json:"kind"`
	Description       string         `json:"description"`
	Status            TransferStatus `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	ClientTimestamp   time.Time      `json:"client_timestamp"`
	FromBankName      string         `json:"from_bank_name"`
	FromAccountNumber string         `json:"from_account_number"`
	ToBankName        string         `json:"to_bank_name"`
	ToAccountNumber   string         `json:"to_account_number"`
}
