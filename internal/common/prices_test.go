package common

import (
	"os"
	"path/filepath"
	"testing"

	"metered-ledger-go/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrices(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPriceTable_Defaults(t *testing.T) {
	prices, err := LoadPriceTable("")
	require.NoError(t, err)
	assert.Equal(t, ledger.DefaultPrices().Types(), prices.Types())
	assert.True(t, prices.Cost(ledger.OperationDivision).Equal(decimal.NewFromInt(5)))
}

func TestLoadPriceTable_Overrides(t *testing.T) {
	path := writePrices(t, "prices:\n  division: 7\n  addition: 0.5\n  modulo: 2\n")

	prices, err := LoadPriceTable(path)
	require.NoError(t, err)
	assert.True(t, prices.Cost(ledger.OperationDivision).Equal(decimal.NewFromInt(7)))
	assert.True(t, prices.Cost(ledger.OperationAddition).Equal(decimal.RequireFromString("0.5")))
	assert.True(t, prices.Cost("modulo").Equal(decimal.NewFromInt(2)))
	assert.True(t, prices.Cost(ledger.OperationSquareRoot).Equal(decimal.NewFromInt(3)))
}

func TestLoadPriceTable_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative cost", "prices:\n  division: -1\n"},
		{"not a number", "prices:\n  division: five\n"},
		{"malformed yaml", "prices: [division\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPriceTable(writePrices(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadPriceTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
