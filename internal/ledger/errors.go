package ledger

import (
	"errors"
	"fmt"

	"metered-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation marks missing or malformed caller input. No store was touched.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is a well-formed business rejection, not a fault.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrStore wraps every failed balance or ledger store call.
	ErrStore = errors.New("store failure")

	// ErrExecution is returned when the operation's side effect failed.
	ErrExecution = errors.New("operation execution failed")

	// ErrEnrichment marks a record whose operation could not be joined.
	ErrEnrichment = errors.New("record enrichment failed")

	// ErrPartialCommit means the side effect ran but persisting it did not fully succeed.
	ErrPartialCommit = errors.New("partial commit")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type InsufficientBalanceError struct {
	UserId   string
	Required decimal.Decimal
	Current  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %s: required %s, current %s",
		e.UserId, e.Required, e.Current)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// StoreError is a failed call against a balance or ledger store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStore, e.Err}
}

func newStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

type ExecutionError struct {
	OperationType string
	Err           error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing %s: %v", e.OperationType, e.Err)
}

func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}

// EnrichmentError never fails a query; it is logged and turned into a per-record marker.
type EnrichmentError struct {
	RecordId string
	Err      error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enriching record %s: %v", e.RecordId, e.Err)
}

func (e *EnrichmentError) Unwrap() []error {
	return []error{ErrEnrichment, e.Err}
}

// PartialCommitError reports which persistence steps landed after the side effect ran.
type PartialCommitError struct {
	UserId            string
	OperationId       string
	RecordId          string
	BalanceWritten    bool
	OperationAppended bool
	RecordAppended    bool
	Err               error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("partial commit for operation %s (balance=%t operation=%t record=%t): %v",
		e.OperationId, e.BalanceWritten, e.OperationAppended, e.RecordAppended, e.Err)
}

func (e *PartialCommitError) Unwrap() []error {
	return []error{ErrPartialCommit, ErrStore, e.Err}
}

// Nothing persisted at all, so the caller saw a plain store failure.
func (e *PartialCommitError) nothingPersisted() bool {
	return !e.BalanceWritten && !e.OperationAppended && !e.RecordAppended
}

// IsClientError returns true if the error is due to the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, store.ErrConcurrentModification)
}
