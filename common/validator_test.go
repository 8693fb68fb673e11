package common

import (
	"encoding/json"
	"go-bank-sync/logger"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type linkPayload struct {
	BankName string `json:"bank_name" validate:"required"`
	PIN      string `json:"pin" validate:"required,len=4,numeric"`
}

func TestValidateAndDecode(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bank_name":"First Sync Bank","pin":"1234"}`))

		var payload linkPayload
		ok := ValidateAndDecode(rr, req, &payload)

		assert.True(t, ok)
		assert.Equal(t, "First Sync Bank", payload.BankName)
	})

	t.Run("malformed json", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bank_name":`))

		var payload linkPayload
		ok := ValidateAndDecode(rr, req, &payload)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var appErr AppError
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &appErr))
		assert.Equal(t, http.StatusBadRequest, appErr.Code)
		assert.Equal(t, "Invalid request body", appErr.Message)
	})

	t.Run("failed check names the field", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bank_name":"First Sync Bank","pin":"12345"}`))

		var payload linkPayload
		ok := ValidateAndDecode(rr, req, &payload)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var appErr AppError
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &appErr))
		assert.Equal(t, "invalid pin: failed len check", appErr.Message)
	})
}
