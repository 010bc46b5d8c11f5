package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"metered-ledger-go/internal/ledger"
	"metered-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
)

// ListRecords serves GET /api/records
func (s *LedgerService) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := s.ledger.QueryRecords(r.Context(), ledger.QueryParams{
		UserId:              q.Get("user_id"),
		AmountFilter:        q.Get("filter_amount"),
		OperationTypeFilter: q.Get("filter_operation_type"),
		SortOrder:           q.Get("sort[order]"),
		Page:                atoiOrZero(q.Get("page")),
		PerPage:             atoiOrZero(q.Get("per_page")),
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

type deleteRecordRequest struct {
	UserId string `json:"user_id"`
}

// DeleteRecord serves DELETE /api/records/{id}
func (s *LedgerService) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	var req deleteRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserId == "" {
		req.UserId = r.URL.Query().Get("user_id")
	}

	rec, err := s.ledger.SoftDeleteRecord(r.Context(), chi.URLParam(r, "id"), req.UserId)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.SoftDeleteResponse{
		Message: "Successfully soft deleted record",
		Record:  rec,
	})
}

// atoiOrZero lets the ledger apply its paging defaults to malformed input.
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
