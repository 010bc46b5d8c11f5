package store

import (
	"errors"
	"fmt"
	"testing"
)

// Compile-time checks that the interfaces are importable and usable.
func TestStoreInterfacesExist(t *testing.T) {
	_ = RecordQuery{UserId: "u1", SortHint: SortDesc}

	var _ BalanceStore
	var _ VersionedBalanceStore
	var _ LedgerStore
	var _ Backend
}

func TestSentinelErrorsWrap(t *testing.T) {
	err := fmt.Errorf("update record: %w", ErrConditionFailed)
	if !errors.Is(err, ErrConditionFailed) {
		t.Errorf("expected wrapped ErrConditionFailed, got %v", err)
	}
	if errors.Is(err, ErrConcurrentModification) {
		t.Errorf("did not expect ErrConcurrentModification in %v", err)
	}
}
