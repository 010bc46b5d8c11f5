// Package operations holds the priced operations users can run and the
// upstream checks that must pass before the ledger is involved.
package operations

import (
	"context"
	"fmt"
	"sort"

	"metered-ledger-go/internal/ledger"
	"metered-ledger-go/internal/models"
)

type Definition struct {
	Type     string
	Arity    int
	validate func([]float64) error
	run      ledger.SideEffect
}

// Validate checks operand count and domain without touching any store.
func (d Definition) Validate(operands []float64) error {
	if len(operands) != d.Arity {
		return &OperandError{
			OperationType: d.Type,
			Message:       fmt.Sprintf("%s expects %d operand(s), got %d", d.Type, d.Arity, len(operands)),
		}
	}
	if err := validateFinite(d.Type, operands); err != nil {
		return err
	}
	if d.validate != nil {
		return d.validate(operands)
	}
	return nil
}

func (d Definition) SideEffect() ledger.SideEffect {
	return d.run
}

type Registry struct {
	definitions map[string]Definition
}

func NewRegistry(random *RandomStringClient) *Registry {
	r := &Registry{definitions: map[string]Definition{
		ledger.OperationAddition:    {Type: ledger.OperationAddition, Arity: 2, run: addition},
		ledger.OperationSubtraction: {Type: ledger.OperationSubtraction, Arity: 2, run: subtraction},
		ledger.OperationDivision:    {Type: ledger.OperationDivision, Arity: 2, validate: validateDivision, run: division},
		ledger.OperationSquareRoot:  {Type: ledger.OperationSquareRoot, Arity: 1, validate: validateSquareRoot, run: squareRoot},
	}}

	if random != nil {
		r.definitions[ledger.OperationRandomString] = Definition{
			Type:  ledger.OperationRandomString,
			Arity: 0,
			run:   random.SideEffect,
		}
	}
	return r
}

func (r *Registry) Lookup(operationType string) (Definition, bool) {
	def, ok := r.definitions[operationType]
	return def, ok
}

func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Run validates operands and executes the operation through the ledger.
func Run(ctx context.Context, svc *ledger.Service, def Definition, userId string, operands []float64) (*models.OperationResult, error) {
	if err := def.Validate(operands); err != nil {
		return nil, err
	}
	return svc.Execute(ctx, ledger.ExecuteParams{
		UserId:        userId,
		OperationType: def.Type,
		Operands:      operands,
		SideEffect:    def.run,
	})
}
