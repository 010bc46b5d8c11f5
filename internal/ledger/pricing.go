package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	OperationAddition     = "addition"
	OperationSubtraction  = "subtraction"
	OperationDivision     = "division"
	OperationSquareRoot   = "square_root"
	OperationRandomString = "random_string"
)

// PriceTable maps an operation type to its cost. Unknown types cost 0.
type PriceTable map[string]decimal.Decimal

func DefaultPrices() PriceTable {
	return PriceTable{
		OperationAddition:     decimal.NewFromInt(1),
		OperationSubtraction:  decimal.NewFromInt(1),
		OperationDivision:     decimal.NewFromInt(5),
		OperationSquareRoot:   decimal.NewFromInt(3),
		OperationRandomString: decimal.NewFromInt(10),
	}
}

func (p PriceTable) Cost(operationType string) decimal.Decimal {
	cost, ok := p[operationType]
	if !ok {
		return decimal.Zero
	}
	return cost
}

// Validate rejects negative costs.
func (p PriceTable) Validate() error {
	for opType, cost := range p {
		if opType == "" {
			return fmt.Errorf("price table contains an empty operation type")
		}
		if cost.IsNegative() {
			return fmt.Errorf("cost for %s must not be negative, got %s", opType, cost)
		}
	}
	return nil
}

// Types returns the priced operation types in sorted order.
func (p PriceTable) Types() []string {
	types := make([]string, 0, len(p))
	for opType := range p {
		types = append(types, opType)
	}
	sort.Strings(types)
	return types
}
