package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100

	markerMissingOperationRef = "Missing operation reference"
	markerOperationNotFound   = "Operation not found"
	markerEnrichmentFailed    = "Failed to enrich record"
)

type QueryParams struct {
	UserId string
	// AmountFilter is a substring of the stored amount, not a numeric range.
	AmountFilter string
	// OperationTypeFilter is a case-insensitive substring of the operation type.
	OperationTypeFilter string
	// SortOrder is "asc" for oldest first; anything else sorts newest first.
	SortOrder string
	Page      int
	PerPage   int
}

// QueryRecords returns one page of a user's visible records joined with their
// operation types. Failing to join a record degrades that record only.
func (s *Service) QueryRecords(ctx context.Context, p QueryParams) (*models.RecordPage, error) {
	if p.UserId == "" {
		return nil, newValidationError("user_id", "is required")
	}

	order := store.SortDesc
	if strings.EqualFold(p.SortOrder, string(store.SortAsc)) {
		order = store.SortAsc
	}
	page, perPage := normalizePaging(p.Page, p.PerPage)

	records, err := s.ledger.QueryRecordsByUser(ctx, store.RecordQuery{
		UserId:         p.UserId,
		AmountContains: p.AmountFilter,
		SortHint:       order,
	})
	if err != nil {
		zap.L().Error("Failed to query records", zap.String("user_id", p.UserId), zap.Error(err))
		return nil, newStoreError("query records", err)
	}

	if len(records) == 0 {
		return emptyPage(page, perPage), nil
	}

	enriched := s.enrich(ctx, records)

	if p.OperationTypeFilter != "" {
		enriched = filterByOperationType(enriched, p.OperationTypeFilter)
	}

	sortByDate(enriched, order)

	total := len(enriched)
	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	data := make([]models.EnrichedRecord, end-start)
	copy(data, enriched[start:end])

	zap.L().Debug("Queried records",
		zap.String("user_id", p.UserId),
		zap.Int("fetched", len(records)),
		zap.Int("matched", total),
		zap.Int("page", page),
		zap.Int("per_page", perPage))

	return &models.RecordPage{
		Data: data,
		Pagination: models.Pagination{
			Total:       total,
			PerPage:     perPage,
			CurrentPage: page,
			TotalPages:  totalPages(total, perPage),
		},
	}, nil
}

func normalizePaging(page, perPage int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

func totalPages(total, perPage int) int {
	return (total + perPage - 1) / perPage
}

func emptyPage(page, perPage int) *models.RecordPage {
	return &models.RecordPage{
		Data: []models.EnrichedRecord{},
		Pagination: models.Pagination{
			Total:       0,
			PerPage:     perPage,
			CurrentPage: page,
			TotalPages:  0,
		},
	}
}

// enrich joins every record to its operation type. Lookups run concurrently
// and land at their record's index, so input order is kept.
func (s *Service) enrich(ctx context.Context, records []models.StoredRecord) []models.EnrichedRecord {
	enriched := make([]models.EnrichedRecord, len(records))

	var g errgroup.Group
	g.SetLimit(s.enrichmentConcurrency)
	for i := range records {
		rec := &records[i]
		i := i
		g.Go(func() error {
			enriched[i] = s.enrichRecord(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()

	return enriched
}

func (s *Service) enrichRecord(ctx context.Context, rec *models.StoredRecord) models.EnrichedRecord {
	out := models.EnrichedRecord{
		Id:                rec.Id,
		Amount:            rec.Amount,
		UserBalance:       rec.UserBalance,
		OperationResponse: rec.OperationResponse,
		Date:              rec.Date,
	}
	recordId, _ := rec.GetId()

	operationId, ok := rec.GetOperationId()
	if !ok || operationId == "" {
		enrichmentFailuresTotal.WithLabelValues("missing_reference").Inc()
		zap.L().Warn("Record has no operation reference", zap.String("record_id", recordId))
		out.Error = markerMissingOperationRef
		return out
	}

	op, err := s.ledger.GetOperationById(ctx, operationId)
	if err != nil {
		enrichmentFailuresTotal.WithLabelValues("lookup_failed").Inc()
		enrichErr := &EnrichmentError{RecordId: recordId, Err: err}
		zap.L().Warn("Failed to enrich record",
			zap.String("record_id", recordId),
			zap.String("operation_id", operationId),
			zap.Error(enrichErr))
		out.Error = markerEnrichmentFailed
		return out
	}

	opType, ok := op.GetType()
	if !ok {
		// nil op or an operation without a type attribute
		enrichmentFailuresTotal.WithLabelValues("not_found").Inc()
		zap.L().Warn("Operation not found for record",
			zap.String("record_id", recordId),
			zap.String("operation_id", operationId))
		out.Error = markerOperationNotFound
		return out
	}

	out.OperationType = models.StringPtr(opType)
	return out
}

func filterByOperationType(records []models.EnrichedRecord, filter string) []models.EnrichedRecord {
	needle := strings.ToLower(filter)
	filtered := records[:0]
	for _, rec := range records {
		if rec.OperationType == nil {
			continue
		}
		if strings.Contains(strings.ToLower(*rec.OperationType), needle) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func sortByDate(records []models.EnrichedRecord, order store.SortOrder) {
	keys := make([]int64, len(records))
	for i := range records {
		keys[i] = dateMillis(records[i].Date)
	}

	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if order == store.SortAsc {
			return keys[idx[a]] < keys[idx[b]]
		}
		return keys[idx[a]] > keys[idx[b]]
	})

	sorted := make([]models.EnrichedRecord, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}

// dateMillis parses a stored date to epoch milliseconds; absent or unparsable dates are 0.
func dateMillis(date *string) int64 {
	if date == nil {
		return 0
	}
	if t, err := time.Parse(time.RFC3339Nano, *date); err == nil {
		return t.UnixMilli()
	}
	if t, err := time.Parse(time.DateOnly, *date); err == nil {
		return t.UnixMilli()
	}
	return 0
}
