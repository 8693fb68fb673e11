package model

import "time"

// BankAccount is a linked bank account. Balance is held in integral minor
// units (paise) and is mutated only by the ledger engine inside a transfer's
// transaction.
type BankAccount struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id,omitempty"`
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	RoutingCode   string    `json:"routing_code"`
	Branch        string    `json:"branch"`
	PINHash       string    `json:"-"`
	Balance       int64     `json:"balance"`
	CreatedAt     time.Time `json:"created_at"`
}

// AccountSnapshot is the authoritative user view returned by the server.
type AccountSnapshot struct {
	ID           string         `json:"id"`
	PhoneNumber  string         `json:"phone_number"`
	BankAccounts []*BankAccount `json:"bankAccounts"`
}

// CachedAccount is the client-side projection of a BankAccount.
// AuthoritativeBalance is whatever the server last reported.
// ProjectedBalance additionally reflects optimistic debits for queued
// transfers and is discarded on every snapshot refresh; the two are kept as
// distinct fields so reconciliation bugs show up instead of being papered
// over by a silent overwrite.
type CachedAccount struct {
	ID                   string `json:"id"`
	BankName             string `json:"bank_name"`
	AccountNumber        string `json:"account_number"`
	RoutingCode          string `json:"routing_code"`
	Branch               string `json:"branch"`
	AuthoritativeBalance int64  `json:"authoritative_balance"`
	ProjectedBalance     int64  `json:"projected_balance"`
}
