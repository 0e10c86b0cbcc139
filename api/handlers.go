/*
handlers.go - HTTP API handlers for the prepaid credit ledger

ENDPOINTS:
  Credits:
    POST   /api/tenants/{id}/credits/add       Add credit
    POST   /api/tenants/{id}/credits/consume   Consume credit
    POST   /api/tenants/{id}/credits/refund    Refund a consumption
    POST   /api/tenants/{id}/credits/expire    Run expiration
    POST   /api/tenants/{id}/credits/renew     Renew expired batches

  Read:
    GET    /api/tenants/{id}/balance                Current balance
    GET    /api/tenants/{id}/operations             Operation history
    GET    /api/tenants/{id}/operations?kind=ADD     Filtered by kind

ARCHITECTURE:
  Handler wraps a single usecase.Service; each handler parses the
  request, calls the use case, and serializes the result. No domain
  logic lives here.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 402: Insufficient balance
  - 404: Account not found
  - 409: Consume against an expired batch
  - 500: Internal/repository errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - usecase/service.go: the use cases these handlers call
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prepaid/creditengine/ledger"
	"github.com/prepaid/creditengine/usecase"
)

// Handler holds the use-case service all HTTP handlers delegate to.
type Handler struct {
	Service *usecase.Service
}

func NewHandler(service *usecase.Service) *Handler {
	return &Handler{Service: service}
}

// AddCredit handles POST /api/tenants/{id}/credits/add.
func (h *Handler) AddCredit(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")

	var req AddCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}
	if req.KindLabel == "" {
		writeError(w, http.StatusBadRequest, "kind_label is required", nil)
		return
	}

	out, err := h.Service.AddCredit(r.Context(), usecase.AddCreditInput{
		TenantID:            tenantID,
		Amount:              amount,
		KindLabel:           req.KindLabel,
		Description:         req.Description,
		ContractedServiceID: req.ContractedServiceID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(out))
}

// ConsumeCredit handles POST /api/tenants/{id}/credits/consume.
func (h *Handler) ConsumeCredit(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")

	var req ConsumeCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}
	var consumedAt time.Time
	if req.ConsumedAt != "" {
		consumedAt, err = time.Parse(time.RFC3339, req.ConsumedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid consumed_at", err)
			return
		}
	}

	out, err := h.Service.ConsumeCredit(r.Context(), usecase.ConsumeCreditInput{
		TenantID:    tenantID,
		Amount:      amount,
		Description: req.Description,
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		ConsumedAt:  consumedAt,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(out))
}

// RefundCredit handles POST /api/tenants/{id}/credits/refund.
func (h *Handler) RefundCredit(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")

	var req RefundCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TargetID == "" || req.TargetType == "" {
		writeError(w, http.StatusBadRequest, "target_type and target_id are required", nil)
		return
	}

	out, err := h.Service.RefundCredit(r.Context(), usecase.RefundCreditInput{
		TenantID:   tenantID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(out))
}

// ExpireCredit handles POST /api/tenants/{id}/credits/expire.
func (h *Handler) ExpireCredit(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")

	out, err := h.Service.ExpireCredit(r.Context(), usecase.ExpireCreditInput{TenantID: tenantID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(out))
}

// RenewCredit handles POST /api/tenants/{id}/credits/renew.
func (h *Handler) RenewCredit(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")

	out, err := h.Service.RenewCredit(r.Context(), usecase.RenewCreditInput{TenantID: tenantID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(out))
}

// GetBalance handles GET /api/tenants/{id}/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")

	var at time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of", err)
			return
		}
		at = parsed
	}

	out, err := h.Service.GetBalance(r.Context(), usecase.GetBalanceInput{TenantID: tenantID, At: at})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	asOf := at
	if asOf.IsZero() {
		asOf = time.Now()
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		AccountID:    out.AccountID,
		Balance:      out.Balance.String(),
		CountExpired: out.CountExpired.String(),
		AsOf:         asOf.Format(timeLayout),
	})
}

// GetOperationHistory handles GET /api/tenants/{id}/operations.
func (h *Handler) GetOperationHistory(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")
	kind := ledger.Kind(r.URL.Query().Get("kind"))

	out, err := h.Service.GetOperationHistory(r.Context(), usecase.GetOperationHistoryInput{
		TenantID: tenantID,
		Kind:     kind,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationHistoryResponse{Operations: toOperationDTOs(out.Operations)})
}

func toMutationResponse(out usecase.AccountMutationOutput) AccountMutationResponse {
	return AccountMutationResponse{AccountID: out.AccountID, NewBalance: out.NewBalance.String()}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger sentinel/struct errors to HTTP status
// codes, per the status table in this file's doc comment.
func writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *ledger.InsufficientBalanceError
	var invalid *ledger.InvalidInputError
	var expired *ledger.ExpiredBatchError

	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "account not found", err)
	case errors.As(err, &insufficient):
		writeError(w, http.StatusPaymentRequired, "insufficient balance", err)
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "invalid input", err)
	case errors.As(err, &expired):
		writeError(w, http.StatusConflict, "batch expired", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
