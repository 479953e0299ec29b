package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"notary/internal/domain"

	"gorm.io/gorm"
)

type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Save(ctx context.Context, record domain.VerificationRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if record.ReceiptID == "" {
		return errors.New("receipt_id is required")
	}
	if record.ReceiptHash == "" {
		return errors.New("receipt_hash is required")
	}

	bundleJSON, err := json.Marshal(record.Bundle)
	if err != nil {
		return err
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	model := VerificationModel{
		ReceiptID:         record.ReceiptID,
		ReceiptHash:       record.ReceiptHash,
		SigOK:             record.SigOK,
		RecoveredIdentity: record.RecoveredIdentity,
		ExpectedIdentity:  record.ExpectedIdentity,
		PolicyHash:        record.PolicyHash,
		ConsentHash:       record.ConsentHash,
		Anchored:          record.Anchored,
		BundleJSON:        bundleJSON,
		CreatedAt:         createdAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *VerificationRepository) FindByReceiptID(ctx context.Context, receiptID string) (*domain.VerificationRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if receiptID == "" {
		return nil, errors.New("receipt_id is required")
	}
	var model VerificationModel
	err := r.db.WithContext(ctx).
		Where("receipt_id = ?", receiptID).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	record, err := verificationFromModel(model)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func verificationFromModel(model VerificationModel) (domain.VerificationRecord, error) {
	var bundle domain.PublicInputBundle
	if len(model.BundleJSON) > 0 {
		if err := json.Unmarshal(model.BundleJSON, &bundle); err != nil {
			return domain.VerificationRecord{}, err
		}
	}
	return domain.VerificationRecord{
		ReceiptID:         model.ReceiptID,
		ReceiptHash:       model.ReceiptHash,
		SigOK:             model.SigOK,
		RecoveredIdentity: model.RecoveredIdentity,
		ExpectedIdentity:  model.ExpectedIdentity,
		PolicyHash:        model.PolicyHash,
		ConsentHash:       model.ConsentHash,
		Anchored:          model.Anchored,
		Bundle:            bundle,
		CreatedAt:         model.CreatedAt,
	}, nil
}
