package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"
	"metered-ledger-go/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticLedger serves fixed store-native rows, including malformed ones.
type staticLedger struct {
	store.LedgerStore
	records    []models.StoredRecord
	operations map[string]*models.StoredOperation
	lookupErr  map[string]error
}

func (l *staticLedger) QueryRecordsByUser(context.Context, store.RecordQuery) ([]models.StoredRecord, error) {
	out := make([]models.StoredRecord, len(l.records))
	copy(out, l.records)
	return out, nil
}

func (l *staticLedger) GetOperationById(_ context.Context, id string) (*models.StoredOperation, error) {
	if err, ok := l.lookupErr[id]; ok {
		return nil, err
	}
	return l.operations[id], nil
}

func putRecord(t *testing.T, mem *memory.Memory, id, userId, opType string, amount int64, date time.Time) {
	t.Helper()
	ctx := context.Background()
	opId := "op_" + id
	require.NoError(t, mem.PutOperation(ctx, models.Operation{Id: opId, Type: opType, Cost: decimal.NewFromInt(1)}))
	require.NoError(t, mem.PutRecord(ctx, models.Record{
		Id:                id,
		OperationId:       opId,
		UserId:            userId,
		Amount:            decimal.NewFromInt(amount),
		UserBalance:       decimal.NewFromInt(90),
		OperationResponse: fmt.Sprint(amount),
		Date:              date,
	}))
}

func TestQueryRecords_RequiresUser(t *testing.T) {
	fs := newFaultyStore()
	fs.failQuery = errors.New("must not be called")
	svc := NewServiceFromBackend(fs, DefaultPrices())

	_, err := svc.QueryRecords(context.Background(), QueryParams{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestQueryRecords_StoreFailure(t *testing.T) {
	fs := newFaultyStore()
	fs.failQuery = errors.New("timeout")
	svc := NewServiceFromBackend(fs, DefaultPrices())

	_, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1"})
	assert.ErrorIs(t, err, ErrStore)
}

func TestQueryRecords_EmptyShortCircuits(t *testing.T) {
	fs := newFaultyStore()
	fs.failGetOperation = errors.New("must not be called")
	svc := NewServiceFromBackend(fs, DefaultPrices())

	page, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1", Page: 2, PerPage: 5})
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
	assert.Equal(t, models.Pagination{Total: 0, PerPage: 5, CurrentPage: 2, TotalPages: 0}, page.Pagination)
}

func TestQueryRecords_RoundTrip(t *testing.T) {
	mem := memory.NewMemory()
	svc := setupService(t, mem)
	putRecord(t, mem, "rec_1", "user1", "addition", 7, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	page, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)

	rec := page.Data[0]
	assert.Equal(t, "rec_1", *rec.Id)
	assert.Equal(t, "addition", *rec.OperationType)
	assert.Equal(t, "7", *rec.Amount)
	assert.Equal(t, "90", *rec.UserBalance)
	assert.Equal(t, "7", *rec.OperationResponse)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", *rec.Date)
	assert.Empty(t, rec.Error)
}

func TestQueryRecords_Pagination(t *testing.T) {
	mem := memory.NewMemory()
	svc := setupService(t, mem)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		putRecord(t, mem, fmt.Sprintf("rec_%02d", i), "user1", "addition", int64(i), base.Add(time.Duration(i)*time.Hour))
	}

	seen := map[string]bool{}
	for pageNum, want := range map[int]int{1: 10, 2: 10, 3: 5} {
		page, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1", Page: pageNum, PerPage: 10})
		require.NoError(t, err)
		assert.Len(t, page.Data, want, "page %d", pageNum)
		assert.Equal(t, 25, page.Pagination.Total)
		assert.Equal(t, 3, page.Pagination.TotalPages)
		assert.Equal(t, pageNum, page.Pagination.CurrentPage)
		for _, rec := range page.Data {
			assert.False(t, seen[*rec.Id], "record %s on more than one page", *rec.Id)
			seen[*rec.Id] = true
		}
	}
	assert.Len(t, seen, 25)

	page, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1", Page: 4, PerPage: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 25, page.Pagination.Total)
}

func TestQueryRecords_PagingDefaultsAndClamp(t *testing.T) {
	tests := []struct {
		page, perPage         int
		wantPage, wantPerPage int
	}{
		{0, 0, 1, 10},
		{-3, -1, 1, 10},
		{2, 500, 2, 100},
		{1, 100, 1, 100},
	}
	for _, tt := range tests {
		page, perPage := normalizePaging(tt.page, tt.perPage)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantPerPage, perPage)
	}
	assert.Equal(t, 3, totalPages(25, 10))
	assert.Equal(t, 1, totalPages(10, 10))
	assert.Equal(t, 0, totalPages(0, 10))
}

func TestQueryRecords_SortDefaultDescending(t *testing.T) {
	mem := memory.NewMemory()
	svc := setupService(t, mem)
	putRecord(t, mem, "rec_jan", "user1", "addition", 1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	putRecord(t, mem, "rec_feb", "user1", "addition", 2, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	page, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1"})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "rec_feb", *page.Data[0].Id)

	page, err = svc.QueryRecords(context.Background(), QueryParams{UserId: "user1", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, "rec_jan", *page.Data[0].Id)
}

func TestQueryRecords_IgnoresStoreOrder(t *testing.T) {
	ledger := &staticLedger{
		records: []models.StoredRecord{
			{Id: models.StringPtr("a"), OperationId: models.StringPtr("op"), Date: models.StringPtr("2024-01-01")},
			{Id: models.StringPtr("b"), OperationId: models.StringPtr("op"), Date: models.StringPtr("2024-03-01T10:00:00.000Z")},
			{Id: models.StringPtr("c"), OperationId: models.StringPtr("op"), Date: models.StringPtr("not a date")},
			{Id: models.StringPtr("d"), OperationId: models.StringPtr("op")},
		},
		operations: map[string]*models.StoredOperation{"op": {Type: models.StringPtr("addition")}},
	}
	svc := NewService(memory.NewMemory(), ledger, DefaultPrices())

	page, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1", SortOrder: "desc"})
	require.NoError(t, err)
	ids := make([]string, len(page.Data))
	for i, rec := range page.Data {
		ids[i] = *rec.Id
	}
	// Unparsable and missing dates sort as epoch 0 and keep their relative order.
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids)
}

func TestQueryRecords_EnrichmentFailuresDegradeRecord(t *testing.T) {
	ledger := &staticLedger{
		records: []models.StoredRecord{
			{Id: models.StringPtr("ok"), OperationId: models.StringPtr("op_ok"), Date: models.StringPtr("2024-01-04")},
			{Id: models.StringPtr("no_ref"), Date: models.StringPtr("2024-01-03")},
			{Id: models.StringPtr("missing"), OperationId: models.StringPtr("op_gone"), Date: models.StringPtr("2024-01-02")},
			{Id: models.StringPtr("broken"), OperationId: models.StringPtr("op_err"), Date: models.StringPtr("2024-01-01")},
		},
		operations: map[string]*models.StoredOperation{"op_ok": {Type: models.StringPtr("square_root")}},
		lookupErr:  map[string]error{"op_err": errors.New("throttled")},
	}
	svc := NewService(memory.NewMemory(), ledger, DefaultPrices())

	page, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1"})
	require.NoError(t, err)
	require.Len(t, page.Data, 4)

	assert.Equal(t, "square_root", *page.Data[0].OperationType)
	assert.Empty(t, page.Data[0].Error)

	assert.Nil(t, page.Data[1].OperationType)
	assert.Equal(t, markerMissingOperationRef, page.Data[1].Error)

	assert.Nil(t, page.Data[2].OperationType)
	assert.Equal(t, markerOperationNotFound, page.Data[2].Error)

	assert.Nil(t, page.Data[3].OperationType)
	assert.Equal(t, markerEnrichmentFailed, page.Data[3].Error)
}

func TestQueryRecords_OperationTypeFilter(t *testing.T) {
	mem := memory.NewMemory()
	svc := setupService(t, mem)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	putRecord(t, mem, "rec_sub", "user1", "subtraction", 3, base)
	putRecord(t, mem, "rec_add", "user1", "addition", 4, base.Add(time.Hour))

	page, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1", OperationTypeFilter: "SUB"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "rec_sub", *page.Data[0].Id)
	assert.Equal(t, 1, page.Pagination.Total)
}

func TestQueryRecords_AmountFilterIsSubstring(t *testing.T) {
	mem := memory.NewMemory()
	svc := setupService(t, mem)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	putRecord(t, mem, "rec_5", "user1", "addition", 5, base)
	putRecord(t, mem, "rec_15", "user1", "addition", 15, base.Add(time.Hour))
	putRecord(t, mem, "rec_7", "user1", "addition", 7, base.Add(2*time.Hour))

	page, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1", AmountFilter: "5"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Total)
}

func TestQueryRecords_OnlyOwnVisibleRecords(t *testing.T) {
	mem := memory.NewMemory()
	svc := setupService(t, mem)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	putRecord(t, mem, "rec_1", "user1", "addition", 1, base)
	putRecord(t, mem, "rec_2", "user1", "addition", 2, base.Add(time.Hour))
	putRecord(t, mem, "rec_3", "user2", "addition", 3, base)

	_, err := svc.SoftDeleteRecord(context.Background(), "rec_2", "user1")
	require.NoError(t, err)

	page, err := svc.QueryRecords(context.Background(), QueryParams{UserId: "user1"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "rec_1", *page.Data[0].Id)
}

func TestSoftDeleteRecord(t *testing.T) {
	mem := memory.NewMemory()
	svc := setupService(t, mem)
	putRecord(t, mem, "rec_1", "user1", "addition", 1, time.Now())

	_, err := svc.SoftDeleteRecord(context.Background(), "", "user1")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.SoftDeleteRecord(context.Background(), "rec_1", "")
	assert.ErrorIs(t, err, ErrValidation)

	// Wrong owner is a store fault, not a validation error
	_, err = svc.SoftDeleteRecord(context.Background(), "rec_1", "user2")
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, store.ErrConditionFailed)
	assert.False(t, IsClientError(err))

	rec, err := svc.SoftDeleteRecord(context.Background(), "rec_1", "user1")
	require.NoError(t, err)
	deleted, ok := rec.GetIsDeleted()
	assert.True(t, ok)
	assert.True(t, deleted)
}
