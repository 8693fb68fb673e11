package handler

import (
	"encoding/json"
	"go-bank-sync/common"
	"go-bank-sync/logger"
	"go-bank-sync/metrics"
	"go-bank-sync/model"
	"go-bank-sync/service"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

// TransferHandler holds dependencies for transfer-related handlers.
type TransferHandler struct {
	service *service.LedgerService
}

func NewTransferHandler(s *service.LedgerService) *TransferHandler {
	return &TransferHandler{service: s}
}

// CreateTransfer godoc
// @Summary      Execute a single transfer
// @Description  Runs one transfer as an atomic unit against the authoritative ledger. Resubmitting the same id echoes the recorded result.
// @Tags         transfers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        transfer body model.Transfer true "Transfer with client-assigned id and sender PIN"
// @Success      201  {object}  model.Transfer
// @Failure      400  {object}  common.AppError "Insufficient funds, self-transfer or invalid amount"
// @Failure      401  {object}  common.AppError "Invalid sender PIN"
// @Failure      403  {object}  common.AppError "Sender account not owned by caller"
// @Failure      404  {object}  common.AppError "Recipient account not found"
// @Failure      500  {object}  common.AppError "Internal error while processing transfer"
// @Router       /transactions [post]
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) *common.AppError {
	var t model.Transfer
	if !common.ValidateAndDecode(w, r, &t) {
		return nil
	}

	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	executed, err := h.service.Execute(r.Context(), userID, &t)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		switch err {
		case service.ErrRecipientNotFound:
			return common.NewAppError(http.StatusNotFound, err.Error(), err)
		case service.ErrUnauthorized:
			return common.NewAppError(http.StatusForbidden, err.Error(), err)
		case service.ErrInvalidPIN:
			return common.NewAppError(http.StatusUnauthorized, err.Error(), err)
		case service.ErrInsufficientFunds, service.ErrSelfTransfer, service.ErrInvalidAmount, service.ErrMissingTransferID:
			return common.NewAppError(http.StatusBadRequest, err.Error(), err)
		default:
			return common.NewAppError(http.StatusInternalServerError, "Could not process transfer", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(executed)
	return nil
}

// SyncTransfers godoc
// @Summary      Replay a batch of queued transfers
// @Description  Applies each queued transfer as its own atomic unit; one rejection never blocks siblings. Results are matched by transfer id.
// @Tags         transfers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        batch body model.SyncRequest true "Outbox batch, oldest first"
// @Success      200  {object}  model.SyncResponse
// @Failure      401  {object}  common.AppError
// @Router       /sync/transactions [post]
func (h *TransferHandler) SyncTransfers(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return common.NewAppError(http.StatusBadRequest, "Invalid request body", err)
	}

	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    userID,
		"batch_size": len(req.Transfers),
	})
	log.Info("Sync batch received")

	results := []model.BatchResult{}
	if len(req.Transfers) > 0 {
		results = h.service.ExecuteBatch(r.Context(), userID, req.Transfers)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(model.SyncResponse{Results: results})
	return nil
}

// ListTransactions godoc
// @Summary      Fetch paginated transfer history
// @Tags         transfers
// @Produce      json
// @Security     BearerAuth
// @Param        page  query int false "Page number, 1-based"
// @Param        limit query int false "Page size"
// @Success      200  {object}  model.HistoryResponse
// @Failure      401  {object}  common.AppError
// @Router       /transactions [get]
func (h *TransferHandler) ListTransactions(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := h.service.History(r.Context(), userID, page, limit)
	if err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not retrieve transactions", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(history)
	return nil
}
