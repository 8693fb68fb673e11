package router

import (
	"go-bank-sync/common"
	"go-bank-sync/handler"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "go-bank-sync/docs"
)

func NewRouter(authHandler *handler.AuthHandler, accountHandler *handler.AccountHandler, transferHandler *handler.TransferHandler) http.Handler {
	mux := http.NewServeMux()

	protected := func(h func(http.ResponseWriter, *http.Request) *common.AppError) http.Handler {
		return handler.AuthMiddleware(handler.ErrorHandlingMiddleware(h))
	}

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	mux.Handle("POST /auth/request-otp", handler.ErrorHandlingMiddleware(authHandler.RequestOTP))
	mux.Handle("POST /auth/verify-otp", handler.ErrorHandlingMiddleware(authHandler.VerifyOTP))

	mux.Handle("GET /account/details", protected(accountHandler.GetSnapshot))
	mux.Handle("POST /bank-accounts/link", protected(accountHandler.LinkAccount))
	mux.Handle("GET /bank-accounts", protected(accountHandler.ListAccounts))
	mux.Handle("POST /bank-accounts/lookup", protected(accountHandler.LookupAccount))

	mux.Handle("POST /transactions", protected(transferHandler.CreateTransfer))
	mux.Handle("GET /transactions", protected(transferHandler.ListTransactions))
	mux.Handle("POST /sync/transactions", protected(transferHandler.SyncTransfers))

	return mux
}
