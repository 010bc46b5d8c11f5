package docstore

import (
	"metered-ledger-go/internal/models"
)

// Documents mirror the store-native shape: every attribute may be missing,
// so fields are pointers and decode to nil when absent.

type balanceDoc struct {
	UserId  string  `bson:"_id"`
	Balance *string `bson:"balance,omitempty"`
	Version int64   `bson:"version"`
}

type operationDoc struct {
	Id   *string `bson:"_id"`
	Type *string `bson:"type,omitempty"`
	Cost *string `bson:"cost,omitempty"`
}

type recordDoc struct {
	Key               string  `bson:"_id"`
	Id                *string `bson:"id,omitempty"`
	OperationId       *string `bson:"operation_id,omitempty"`
	UserId            *string `bson:"user_id,omitempty"`
	Amount            *string `bson:"amount,omitempty"`
	UserBalance       *string `bson:"user_balance,omitempty"`
	OperationResponse *string `bson:"operation_response,omitempty"`
	IsDeleted         *bool   `bson:"is_deleted,omitempty"`
	Date              *string `bson:"date,omitempty"`
}

// recordKey makes (id, user_id) the document identity.
func recordKey(id, userId string) string {
	return userId + "/" + id
}

func toOperationDoc(op models.Operation) operationDoc {
	return operationDoc{
		Id:   models.StringPtr(op.Id),
		Type: models.StringPtr(op.Type),
		Cost: models.StringPtr(op.Cost.String()),
	}
}

func fromOperationDoc(d *operationDoc) *models.StoredOperation {
	return &models.StoredOperation{Id: d.Id, Type: d.Type, Cost: d.Cost}
}

func toRecordDoc(rec models.Record) recordDoc {
	stored := models.NewStoredRecord(rec)
	return recordDoc{
		Key:               recordKey(rec.Id, rec.UserId),
		Id:                stored.Id,
		OperationId:       stored.OperationId,
		UserId:            stored.UserId,
		Amount:            stored.Amount,
		UserBalance:       stored.UserBalance,
		OperationResponse: stored.OperationResponse,
		IsDeleted:         stored.IsDeleted,
		Date:              stored.Date,
	}
}

func fromRecordDoc(d *recordDoc) *models.StoredRecord {
	return &models.StoredRecord{
		Id:                d.Id,
		OperationId:       d.OperationId,
		UserId:            d.UserId,
		Amount:            d.Amount,
		UserBalance:       d.UserBalance,
		OperationResponse: d.OperationResponse,
		IsDeleted:         d.IsDeleted,
		Date:              d.Date,
	}
}
