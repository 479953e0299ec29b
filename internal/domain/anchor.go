package domain

import (
	"context"
	"encoding/json"
	"time"
)

// AnchorRecord is the gateway's confirmation that a receipt commitment was
// recorded on the L2 ledger. It is additive: attaching it never changes
// hashes already computed from the receipt.
type AnchorRecord struct {
	AnchorID string `json:"anchor_id"`
	L2Tx     L2Tx   `json:"l2_tx"`
}

type L2Tx struct {
	TxHash string `json:"tx_hash"`
}

// AnchorAttempt is the durable trace of one anchoring call, successful or
// not. Failures are recorded and surfaced as warnings; they never abort a
// verification.
type AnchorAttempt struct {
	ReceiptID   string
	Provider    string
	Status      string
	ErrorCode   string
	PayloadHash string

	ProviderReceiptJSON json.RawMessage

	CreatedAt time.Time
}

const (
	AnchorStatusAnchored = "anchored"
	AnchorStatusFailed   = "failed"
	AnchorStatusSkipped  = "skipped"
)

const (
	AnchorErrorNetwork       = "NETWORK"
	AnchorErrorTimeout       = "TIMEOUT"
	AnchorErrorBadConfig     = "BAD_CONFIG"
	AnchorErrorProviderError = "PROVIDER_ERROR"
	AnchorErrorPersistence   = "PERSISTENCE"
)

type AnchorAttemptRepository interface {
	Append(ctx context.Context, attempt AnchorAttempt) error
	ListByReceiptID(ctx context.Context, receiptID string) ([]AnchorAttempt, error)
}
