package db

import (
	"context"
	"errors"
	"time"

	"notary/internal/domain"

	"gorm.io/gorm"
)

type AnchorAttemptRepository struct {
	db *gorm.DB
}

func NewAnchorAttemptRepository(db *gorm.DB) *AnchorAttemptRepository {
	return &AnchorAttemptRepository{db: db}
}

func (r *AnchorAttemptRepository) Append(ctx context.Context, attempt domain.AnchorAttempt) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if attempt.ReceiptID == "" {
		return errors.New("receipt_id is required")
	}
	if attempt.Provider == "" {
		return errors.New("provider is required")
	}
	if attempt.Status == "" {
		return errors.New("status is required")
	}

	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	model := AnchorAttemptModel{
		ReceiptID:           attempt.ReceiptID,
		Provider:            attempt.Provider,
		Status:              attempt.Status,
		ErrorCode:           stringPtrIfNotEmpty(attempt.ErrorCode),
		PayloadHash:         attempt.PayloadHash,
		ProviderReceiptJSON: copyBytes(attempt.ProviderReceiptJSON),
		CreatedAt:           createdAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AnchorAttemptRepository) ListByReceiptID(ctx context.Context, receiptID string) ([]domain.AnchorAttempt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if receiptID == "" {
		return nil, errors.New("receipt_id is required")
	}
	var models []AnchorAttemptModel
	if err := r.db.WithContext(ctx).
		Where("receipt_id = ?", receiptID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AnchorAttempt, 0, len(models))
	for _, model := range models {
		out = append(out, domain.AnchorAttempt{
			ReceiptID:           model.ReceiptID,
			Provider:            model.Provider,
			Status:              model.Status,
			ErrorCode:           stringValue(model.ErrorCode),
			PayloadHash:         model.PayloadHash,
			ProviderReceiptJSON: copyBytes(model.ProviderReceiptJSON),
			CreatedAt:           model.CreatedAt,
		})
	}
	return out, nil
}

func stringPtrIfNotEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func copyBytes(value []byte) []byte {
	if len(value) == 0 {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
