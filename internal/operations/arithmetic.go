package operations

import (
	"context"
	"errors"
	"fmt"
	"math"

	"metered-ledger-go/internal/ledger"
)

// ErrInvalidOperands is returned before the ledger runs when operands are
// outside an operation's domain.
var ErrInvalidOperands = errors.New("invalid operands")

type OperandError struct {
	OperationType string
	Message       string
}

func (e *OperandError) Error() string {
	return e.Message
}

func (e *OperandError) Unwrap() error {
	return ErrInvalidOperands
}

func addition(_ context.Context, operands []float64) (ledger.Outcome, error) {
	return finiteOutcome(ledger.OperationAddition, operands[0]+operands[1])
}

func subtraction(_ context.Context, operands []float64) (ledger.Outcome, error) {
	return finiteOutcome(ledger.OperationSubtraction, operands[0]-operands[1])
}

func division(_ context.Context, operands []float64) (ledger.Outcome, error) {
	return finiteOutcome(ledger.OperationDivision, operands[0]/operands[1])
}

func squareRoot(_ context.Context, operands []float64) (ledger.Outcome, error) {
	return finiteOutcome(ledger.OperationSquareRoot, math.Sqrt(operands[0]))
}

// finiteOutcome rejects results that overflowed even though the operands were finite.
func finiteOutcome(opType string, v float64) (ledger.Outcome, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ledger.Outcome{}, &OperandError{OperationType: opType, Message: "Result is out of range"}
	}
	return ledger.NumericOutcome(v), nil
}

func validateFinite(opType string, operands []float64) error {
	for i, v := range operands {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &OperandError{OperationType: opType, Message: fmt.Sprintf("operand %d must be a finite number", i+1)}
		}
	}
	return nil
}

func validateDivision(operands []float64) error {
	if operands[1] == 0 {
		return &OperandError{OperationType: ledger.OperationDivision, Message: "Division by zero is not allowed"}
	}
	return nil
}

func validateSquareRoot(operands []float64) error {
	if operands[0] < 0 {
		return &OperandError{OperationType: ledger.OperationSquareRoot, Message: "Cannot calculate square root of negative number"}
	}
	return nil
}
