package usecase

import (
	"context"

	"notary/internal/domain"
)

// ReceiptSource fetches receipts and remote verdicts from the gateway.
type ReceiptSource interface {
	FetchReceipt(ctx context.Context, receiptID string) (domain.Receipt, error)
	VerifyReceipt(ctx context.Context, receiptID string) (domain.GatewayCheck, error)
}

// Anchorer runs one best-effort anchoring attempt. The record is nil
// unless the attempt succeeded; the attempt always describes the outcome.
type Anchorer interface {
	RequestAnchor(ctx context.Context, receiptID, payloadHash string) (*domain.AnchorRecord, domain.AnchorAttempt)
}

// ProofBackend produces a proof over a finished public-input bundle.
type ProofBackend interface {
	ProveBundle(ctx context.Context, publicInputs domain.PublicInputBundle, witness domain.Witness, stub bool) (domain.Proof, error)
}

// PolicyEngine evaluates the decision policy over a completed pipeline
// run.
type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
	BundleHash() string
}
