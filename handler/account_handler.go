package handler

import (
	"encoding/json"
	"go-bank-sync/common"
	"go-bank-sync/logger"
	"go-bank-sync/model"
	"go-bank-sync/service"
	"net/http"

	"github.com/sirupsen/logrus"
)

type AccountHandler struct {
	service *service.AccountService
}

func NewAccountHandler(service *service.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// LinkAccount godoc
// @Summary      Link a bank account
// @Description  Links a PIN-protected bank account to the authenticated user.
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        account body model.LinkAccountRequest true "Bank account details and 4-digit PIN"
// @Success      201  {object}  model.BankAccount
// @Failure      400  {object}  common.AppError "Missing fields or malformed PIN"
// @Failure      409  {object}  common.AppError "Account number already linked"
// @Router       /bank-accounts/link [post]
func (h *AccountHandler) LinkAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LinkAccountRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	log := logger.Log.WithFields(logrus.Fields{
		"user_id":   userID,
		"bank_name": req.BankName,
	})
	log.Info("Link account request received")

	account, err := h.service.LinkAccount(userID, req)
	if err != nil {
		if err == service.ErrAccountNumberLinked {
			return common.NewAppError(http.StatusConflict, err.Error(), err)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not link bank account", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
	return nil
}

// ListAccounts godoc
// @Summary      List linked bank accounts
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   model.BankAccount
// @Failure      401  {object}  common.AppError
// @Router       /bank-accounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	accounts, err := h.service.ListAccountsForUser(userID)
	if err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not retrieve accounts", err)
	}
	if accounts == nil {
		accounts = []*model.BankAccount{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(accounts)
	return nil
}

// GetSnapshot godoc
// @Summary      Fetch the authoritative account snapshot
// @Description  The client rehydrates its local cache from this view, discarding any optimistic projection.
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.AccountSnapshot
// @Failure      404  {object}  common.AppError "User not found"
// @Router       /account/details [get]
func (h *AccountHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	snapshot, err := h.service.GetSnapshot(userID)
	if err != nil {
		if err == service.ErrUserNotFound {
			return common.NewAppError(http.StatusNotFound, err.Error(), err)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not retrieve account snapshot", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(snapshot)
	return nil
}

// LookupAccount godoc
// @Summary      Look up a recipient bank account
// @Description  Resolves an account number + routing code + branch tuple. The ledger engine re-resolves at execution time.
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        lookup body model.LookupRequest true "Recipient identifying tuple"
// @Success      200  {object}  model.LookupResponse
// @Failure      404  {object}  common.AppError "No account matches the tuple"
// @Router       /bank-accounts/lookup [post]
func (h *AccountHandler) LookupAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LookupRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	result, err := h.service.Lookup(req)
	if err != nil {
		if err == service.ErrRecipientNotFound {
			return common.NewAppError(http.StatusNotFound, err.Error(), err)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not look up account", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
	return nil
}
