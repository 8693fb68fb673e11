package builder

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"go-bank-sync/model"
)

// Intent is the raw user input for a transfer before it becomes a ledger
// request. Amount arrives as the decimal string the user typed; it is only
// converted to minor units after validation.
type Intent struct {
	FromAccountID   string             `validate:"required"`
	ToAccountNumber string             `validate:"required"`
	ToRoutingCode   string             `validate:"required"`
	ToBranch        string             `validate:"required"`
	Amount          string             `validate:"required"`
	Kind            model.TransferKind `validate:"required,oneof=transfer payment withdrawal deposit"`
	Description     string             `validate:"max=200"`
}

// ValidationError reports a single rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var (
	pinPattern    = regexp.MustCompile(`^\d{4}$`)
	amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

// ParseAmount converts a decimal amount string into minor units. At most two
// fractional digits are accepted; "12.5" means 12 units and 50 subunits.
func ParseAmount(s string) (int64, error) {
	if !amountPattern.MatchString(s) {
		return 0, &ValidationError{Field: "amount", Reason: "must be a positive decimal with at most two fractional digits"}
	}
	whole, frac, _ := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: "out of range"}
	}
	for len(frac) < 2 {
		frac += "0"
	}
	sub, _ := strconv.ParseInt(frac, 10, 64)
	if units > (math.MaxInt64-sub)/100 {
		return 0, &ValidationError{Field: "amount", Reason: "out of range"}
	}
	amount := units*100 + sub
	if amount <= 0 {
		return 0, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	return amount, nil
}

// Builder turns validated intents into submittable transfer requests.
type Builder struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{
		validate: validator.New(),
		now:      time.Now,
	}
}

// Build validates the intent and PIN and assembles a pending transfer with a
// fresh client-generated id. The id is minted exactly once here; retries of
// the same request must reuse the returned transfer unchanged.
func (b *Builder) Build(intent Intent, pin string) (*model.Transfer, error) {
	if err := b.validate.Struct(intent); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return nil, &ValidationError{Field: strings.ToLower(errs[0].Field()), Reason: "failed " + errs[0].Tag() + " check"}
		}
		return nil, err
	}
	if !pinPattern.MatchString(pin) {
		return nil, &ValidationError{Field: "pin", Reason: "must be exactly four digits"}
	}
	amount, err := ParseAmount(intent.Amount)
	if err != nil {
		return nil, err
	}

	now := b.now().UTC()
	return &model.Transfer{
		ID:              newTransferID(now),
		FromAccountID:   intent.FromAccountID,
		ToAccountNumber: intent.ToAccountNumber,
		ToRoutingCode:   intent.ToRoutingCode,
		ToBranch:        intent.ToBranch,
		Amount:          amount,
		Kind:            intent.Kind,
		Description:     intent.Description,
		SenderPIN:       pin,
		Status:          model.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		ClientTimestamp: now,
	}, nil
}

func newTransferID(now time.Time) string {
	suffix := make([]byte, 6)
	rand.Read(suffix)
	return fmt.Sprintf("tx_%d_%s", now.UnixMilli(), hex.EncodeToString(suffix))
}
