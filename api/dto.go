/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - usecase/types.go: the inputs/outputs these DTOs translate to and from
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/prepaid/creditengine/ledger"
)

// AddCreditRequest is the request body for crediting an account.
type AddCreditRequest struct {
	Amount               string  `json:"amount"`
	KindLabel            string  `json:"kind_label"`
	Description          string  `json:"description,omitempty"`
	ContractedServiceID  *string `json:"contracted_service_id,omitempty"`
}

// ConsumeCreditRequest is the request body for debiting an account.
type ConsumeCreditRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	TargetType  string `json:"target_type,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	ConsumedAt  string `json:"consumed_at,omitempty"` // RFC3339, defaults to the current date
}

// RefundCreditRequest is the request body for reversing a consumption.
type RefundCreditRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
}

// AccountMutationResponse is returned by every mutating endpoint.
type AccountMutationResponse struct {
	AccountID  string `json:"account_id"`
	NewBalance string `json:"new_balance"`
}

// BalanceResponse is returned by GetBalance.
type BalanceResponse struct {
	AccountID    string `json:"account_id"`
	Balance      string `json:"balance"`
	CountExpired string `json:"count_expired"`
	AsOf         string `json:"as_of"`
}

// MovementDTO represents one ledger movement in API responses.
type MovementDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	SignedDelta string `json:"signed_delta"`
	Description string `json:"description,omitempty"`
	TargetType  string `json:"target_type,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	OperationID string `json:"operation_id"`
	CreatedAt   string `json:"created_at"`
}

// OperationDTO groups the movements that resulted from a single logical
// call, per Design Note 9.3.
type OperationDTO struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	AccountID string        `json:"account_id"`
	Total     string        `json:"signed_total"`
	Movements []MovementDTO `json:"movements"`
	CreatedAt string        `json:"created_at"`
}

// OperationHistoryResponse wraps GetOperationHistory's output.
type OperationHistoryResponse struct {
	Operations []OperationDTO `json:"operations"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func toMovementDTO(m ledger.Movement) MovementDTO {
	return MovementDTO{
		ID:          m.ID,
		Kind:        string(m.Kind),
		Amount:      m.Amount.String(),
		SignedDelta: m.SignedDelta.String(),
		Description: m.Description,
		TargetType:  m.Target.Type,
		TargetID:    m.Target.ID,
		OperationID: m.OperationID,
		CreatedAt:   m.CreatedAt.Format(timeLayout),
	}
}

func toOperationDTO(op ledger.Operation) OperationDTO {
	movements := make([]MovementDTO, len(op.Movements))
	for i, m := range op.Movements {
		movements[i] = toMovementDTO(m)
	}
	createdAt := ""
	if !op.CreatedAt.IsZero() {
		createdAt = op.CreatedAt.Format(timeLayout)
	}
	return OperationDTO{
		ID:        op.ID,
		Kind:      string(op.Kind),
		AccountID: op.AccountID,
		Total:     op.SignedTotal().String(),
		Movements: movements,
		CreatedAt: createdAt,
	}
}

func toOperationDTOs(ops []ledger.Operation) []OperationDTO {
	out := make([]OperationDTO, len(ops))
	for i, op := range ops {
		out[i] = toOperationDTO(op)
	}
	return out
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
