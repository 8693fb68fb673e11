package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateAndDecode decodes the JSON body into payload and validates it.
// Failures are answered directly with a field-level AppError so every
// endpoint rejects bad input in the same shape; the caller just returns.
func ValidateAndDecode(w http.ResponseWriter, r *http.Request, payload interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		NewAppError(http.StatusBadRequest, "Invalid request body", err).Send(w)
		return false
	}

	if err := validate.Struct(payload); err != nil {
		NewAppError(http.StatusBadRequest, validationMessage(err), err).Send(w)
		return false
	}

	return true
}

// validationMessage names the first rejected field and the check it failed,
// matching the client-side validation vocabulary.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		return fmt.Sprintf("invalid %s: failed %s check", strings.ToLower(errs[0].Field()), errs[0].Tag())
	}
	return "Invalid request payload"
}
