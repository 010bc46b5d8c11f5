package common

import (
	"fmt"
	"os"
	"path/filepath"

	"metered-ledger-go/internal/ledger"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// PricesConfig is the on-disk price table, e.g.
//
//	prices:
//	  addition: 1
//	  division: 5
type PricesConfig struct {
	Prices map[string]string `yaml:"prices"`
}

// LoadPriceTable layers the file's prices over the defaults. An empty path
// returns the defaults unchanged.
func LoadPriceTable(pricesFile string) (ledger.PriceTable, error) {
	prices := ledger.DefaultPrices()
	if pricesFile == "" {
		return prices, nil
	}

	var pricesPath string
	if filepath.IsAbs(pricesFile) {
		pricesPath = pricesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		pricesPath = filepath.Join(wd, pricesFile)
	}

	data, err := os.ReadFile(pricesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", pricesFile, err)
	}

	var config PricesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", pricesFile, err)
	}

	for opType, raw := range config.Prices {
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid cost for %s: %q", opType, raw)
		}
		prices[opType] = cost
	}

	if err := prices.Validate(); err != nil {
		return nil, err
	}
	return prices, nil
}
