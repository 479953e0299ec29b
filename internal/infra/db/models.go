package db

import "time"

type VerificationModel struct {
	ID                int64  `gorm:"primaryKey"`
	ReceiptID         string `gorm:"index;not null"`
	ReceiptHash       string `gorm:"index;not null"`
	SigOK             bool   `gorm:"not null"`
	RecoveredIdentity string `gorm:"not null"`
	ExpectedIdentity  string `gorm:"not null"`
	PolicyHash        string `gorm:"not null"`
	ConsentHash       string `gorm:"not null"`
	Anchored          bool   `gorm:"not null"`
	BundleJSON        []byte `gorm:"type:jsonb;not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (VerificationModel) TableName() string {
	return "verifications"
}

type AnchorAttemptModel struct {
	ID                  int64  `gorm:"primaryKey"`
	ReceiptID           string `gorm:"index;not null"`
	Provider            string `gorm:"not null"`
	Status              string `gorm:"not null"`
	ErrorCode           *string
	PayloadHash         string    `gorm:"not null"`
	ProviderReceiptJSON []byte    `gorm:"type:jsonb"`
	CreatedAt           time.Time `gorm:"not null"`
}

func (AnchorAttemptModel) TableName() string {
	return "anchor_attempts"
}
