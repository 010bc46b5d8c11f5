package ledger

import (
	"context"

	"metered-ledger-go/internal/models"

	"go.uber.org/zap"
)

// SoftDeleteRecord hides the record owned by userId. A record that does not
// exist or belongs to someone else is reported as a store fault, not a 404.
func (s *Service) SoftDeleteRecord(ctx context.Context, recordId, userId string) (*models.StoredRecord, error) {
	if recordId == "" {
		return nil, newValidationError("record_id", "is required")
	}
	if userId == "" {
		return nil, newValidationError("user_id", "is required")
	}

	rec, err := s.ledger.UpdateRecordDeleted(ctx, recordId, userId)
	if err != nil {
		zap.L().Error("Failed to soft delete record",
			zap.String("record_id", recordId),
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, newStoreError("soft delete record", err)
	}

	zap.L().Info("Record soft deleted",
		zap.String("record_id", recordId),
		zap.String("user_id", userId))
	return rec, nil
}
