package models

import (
	"github.com/shopspring/decimal"
)

// OperationResult is the success envelope of an executed operation
type OperationResult struct {
	OperationId      string          `json:"operation_id"`
	Result           any             `json:"result"`
	Cost             decimal.Decimal `json:"cost"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// InsufficientBalanceResponse is returned when the balance cannot cover the cost
type InsufficientBalanceResponse struct {
	Error          string          `json:"error"`
	Required       decimal.Decimal `json:"required"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// EnrichedRecord is a record joined with its operation type. Fields are null
// when the stored attribute is missing.
type EnrichedRecord struct {
	Id                *string `json:"id"`
	OperationType     *string `json:"operation_type"`
	Amount            *string `json:"amount"`
	UserBalance       *string `json:"user_balance"`
	OperationResponse *string `json:"operation_response"`
	Date              *string `json:"date"`
	Error             string  `json:"error,omitempty"`
}

type Pagination struct {
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

// RecordPage is the query envelope
type RecordPage struct {
	Data       []EnrichedRecord `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

type SoftDeleteResponse struct {
	Message string        `json:"message"`
	Record  *StoredRecord `json:"record"`
}

type UserBalance struct {
	UserId  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
