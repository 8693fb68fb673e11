package handler

import (
	"encoding/json"
	"go-bank-sync/common"
	"go-bank-sync/logger"
	"go-bank-sync/model"
	"go-bank-sync/service"
	"net/http"
)

type AuthHandler struct {
	authService    *service.AuthService
	accountService *service.AccountService
}

func NewAuthHandler(authService *service.AuthService, accountService *service.AccountService) *AuthHandler {
	return &AuthHandler{authService: authService, accountService: accountService}
}

// RequestOTP godoc
// @Summary      Request a login OTP
// @Description  Generates a one-time code for the phone number. Delivery happens through the SMS gateway.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.RequestOTPRequest true "Phone number in E.164 format"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  common.AppError "Invalid phone number"
// @Router       /auth/request-otp [post]
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RequestOTPRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	otp, err := h.authService.RequestOTP(r.Context(), req.PhoneNumber)
	if err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not generate OTP", err)
	}

	// The code goes to the SMS gateway, never into the response.
	logger.Log.WithField("phone_number", req.PhoneNumber).Debugf("OTP issued: %s", otp)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "OTP sent to " + req.PhoneNumber})
	return nil
}

// VerifyOTP godoc
// @Summary      Verify an OTP and issue a token
// @Description  Verifies the submitted code, registering the user on first login, and returns a token plus the account snapshot.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.VerifyOTPRequest true "Phone number and code"
// @Success      200  {object}  model.AuthResponse
// @Failure      401  {object}  common.AppError "Invalid or expired OTP"
// @Router       /auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.VerifyOTPRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	user, token, err := h.authService.VerifyOTP(r.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		switch err {
		case service.ErrOTPNotRequested, service.ErrOTPInvalid, service.ErrOTPTooManyTries:
			return common.NewAppError(http.StatusUnauthorized, err.Error(), err)
		default:
			return common.NewAppError(http.StatusInternalServerError, "Could not verify OTP", err)
		}
	}

	snapshot, err := h.accountService.GetSnapshot(user.ID)
	if err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not load account snapshot", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(model.AuthResponse{
		Token:   token,
		User:    snapshot,
		Message: "Login successful",
	})
	return nil
}
