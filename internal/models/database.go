package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Operation is the priced action row; immutable once written
type Operation struct {
	Id   string          `db:"id"`
	Type string          `db:"type"`
	Cost decimal.Decimal `db:"cost"`
}

// Record is one execution of an Operation by a user
type Record struct {
	Id                string          `db:"id"`
	OperationId       string          `db:"operation_id"`
	UserId            string          `db:"user_id"`
	Amount            decimal.Decimal `db:"amount"`
	UserBalance       decimal.Decimal `db:"user_balance"`
	OperationResponse string          `db:"operation_response"`
	IsDeleted         bool            `db:"is_deleted"`
	Date              time.Time       `db:"date"`
}

// StoredOperation is an operation row as it comes back from a store.
// Any attribute may be absent.
type StoredOperation struct {
	Id   *string `json:"id"`
	Type *string `json:"type"`
	Cost *string `json:"cost"`
}

func (o *StoredOperation) GetId() (string, bool) {
	if o == nil {
		return "", false
	}
	return optString(o.Id)
}

func (o *StoredOperation) GetType() (string, bool) {
	if o == nil {
		return "", false
	}
	return optString(o.Type)
}

func (o *StoredOperation) GetCost() (decimal.Decimal, bool) {
	if o == nil {
		return decimal.Zero, false
	}
	s, ok := optString(o.Cost)
	if !ok {
		return decimal.Zero, false
	}
	cost, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return cost, true
}

// StoredRecord is a record row as it comes back from a store. Stores leave
// a field nil when the attribute is missing; accessors never panic.
type StoredRecord struct {
	Id                *string `json:"id"`
	OperationId       *string `json:"operation_id"`
	UserId            *string `json:"user_id"`
	Amount            *string `json:"amount"`
	UserBalance       *string `json:"user_balance"`
	OperationResponse *string `json:"operation_response"`
	IsDeleted         *bool   `json:"is_deleted"`
	Date              *string `json:"date"`
}

func (r *StoredRecord) GetId() (string, bool) {
	if r == nil {
		return "", false
	}
	return optString(r.Id)
}

func (r *StoredRecord) GetOperationId() (string, bool) {
	if r == nil {
		return "", false
	}
	return optString(r.OperationId)
}

func (r *StoredRecord) GetUserId() (string, bool) {
	if r == nil {
		return "", false
	}
	return optString(r.UserId)
}

func (r *StoredRecord) GetAmount() (string, bool) {
	if r == nil {
		return "", false
	}
	return optString(r.Amount)
}

func (r *StoredRecord) GetUserBalance() (string, bool) {
	if r == nil {
		return "", false
	}
	return optString(r.UserBalance)
}

func (r *StoredRecord) GetOperationResponse() (string, bool) {
	if r == nil {
		return "", false
	}
	return optString(r.OperationResponse)
}

func (r *StoredRecord) GetIsDeleted() (bool, bool) {
	if r == nil || r.IsDeleted == nil {
		return false, false
	}
	return *r.IsDeleted, true
}

func (r *StoredRecord) GetDate() (string, bool) {
	if r == nil {
		return "", false
	}
	return optString(r.Date)
}

// NewStoredRecord converts a fully populated Record into its stored form.
func NewStoredRecord(rec Record) *StoredRecord {
	deleted := rec.IsDeleted
	return &StoredRecord{
		Id:                StringPtr(rec.Id),
		OperationId:       StringPtr(rec.OperationId),
		UserId:            StringPtr(rec.UserId),
		Amount:            StringPtr(rec.Amount.String()),
		UserBalance:       StringPtr(rec.UserBalance.String()),
		OperationResponse: StringPtr(rec.OperationResponse),
		IsDeleted:         &deleted,
		Date:              StringPtr(FormatTimestamp(rec.Date)),
	}
}

// NewStoredOperation converts an Operation into its stored form.
func NewStoredOperation(op Operation) *StoredOperation {
	return &StoredOperation{
		Id:   StringPtr(op.Id),
		Type: StringPtr(op.Type),
		Cost: StringPtr(op.Cost.String()),
	}
}

// TimestampLayout is ISO8601 in UTC with millisecond precision, e.g. 2024-01-01T00:00:00.000Z
const TimestampLayout = "2006-01-02T15:04:05.000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FormatNumber renders a float the shortest way that round-trips ("5", "2.5", "0.1").
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func StringPtr(s string) *string {
	return &s
}

func optString(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}
