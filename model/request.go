package model

// LinkAccountRequest defines the payload for linking a bank account.
// The PIN is validated at the entry point and only its bcrypt hash survives.
type LinkAccountRequest struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	RoutingCode   string `json:"routing_code" validate:"required"`
	Branch        string `json:"branch" validate:"required"`
	PIN           string `json:"pin" validate:"required,len=4,numeric"`
}

// LookupRequest identifies a recipient account by its public tuple.
type LookupRequest struct {
	AccountNumber string `json:"account_number" validate:"required"`
	RoutingCode   string `json:"routing_code" validate:"required"`
	Branch        string `json:"branch" validate:"required"`
}

// LookupResponse deliberately excludes balance and owner identity.
type LookupResponse struct {
	ID            string `json:"id"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	RoutingCode   string `json:"routing_code"`
	Branch        string `json:"branch"`
}

// SyncRequest carries a full outbox batch, oldest first.
type SyncRequest struct {
	Transfers []Transfer `json:"transfers" validate:"required"`
}

type SyncResponse struct {
	Results []BatchResult `json:"results"`
}

type HistoryResponse struct {
	Transactions []*HistoryItem `json:"transactions"`
	HasMore      bool           `json:"hasMore"`
}

type RequestOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
}

type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
}

type AuthResponse struct {
	Token   string           `json:"token"`
	User    *AccountSnapshot `json:"user"`
	Message string           `json:"message"`
}
