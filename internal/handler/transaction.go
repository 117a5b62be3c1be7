package handler

import (
	"net/http"

	"payments-service/internal/repository"
	"payments-service/internal/usecase/settlement"
	"payments-service/pkg/response"

	"github.com/go-chi/chi/v5"
)

func GetTransactionHandler(store repository.LedgerStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txnID := chi.URLParam(r, "transactionID")
		if txnID == "" {
			response.Error(w, http.StatusBadRequest, "Missing transaction ID")
			return
		}
		txn, err := store.GetTransaction(r.Context(), txnID)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, txn)
	}
}

// ReconcileTransactionHandler forces a provider status query for a stuck
// in-flight transaction.
func ReconcileTransactionHandler(settlementUC *settlement.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txn, err := settlementUC.Reconcile(r.Context(), chi.URLParam(r, "transactionID"))
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, txn)
	}
}
