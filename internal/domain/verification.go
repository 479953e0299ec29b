package domain

import (
	"context"
	"time"
)

// GatewayAddressUnresolved is emitted in a PublicInputBundle when the
// signature could not be bound to the expected identity. The bundle is
// still well-formed so callers can decide whether to proceed.
const GatewayAddressUnresolved = "unresolved"

// VerificationOutcome is the result of binding a receipt hash to a signer
// identity. An identity mismatch is a negative result, not an error: SigOK
// is false and Reason says why.
type VerificationOutcome struct {
	SigOK             bool   `json:"sig_ok"`
	RecoveredIdentity string `json:"recovered_identity"`
	Reason            string `json:"reason,omitempty"`
}

// PublicInputBundle is the fixed-shape tuple handed to the proof backend.
// Hashes are 0x-prefixed lowercase hex; the gateway address is lowercase
// hex or GatewayAddressUnresolved. Field order is fixed by the struct and
// must not change: a separate process parses the serialized form.
type PublicInputBundle struct {
	ReceiptHash    string `json:"receipt_hash"`
	PolicyHash     string `json:"policy_hash"`
	ConsentHash    string `json:"consent_hash"`
	GatewayAddress string `json:"gateway_address"`
	Note           string `json:"note,omitempty"`
}

// Witness is the private input for the proof backend.
type Witness struct {
	CanonicalReceipt string `json:"canonical_receipt"`
	SignatureHex     string `json:"signature_hex"`
	ReceiptID        string `json:"receipt_id,omitempty"`
	AnchorTxHash     string `json:"anchor_tx_hash,omitempty"`
}

type WitnessSummary struct {
	ReceiptID    string `json:"receipt_id,omitempty"`
	AnchorTxHash string `json:"anchor_tx_hash,omitempty"`
	CanonicalLen int    `json:"canonical_len"`
}

// Proof is what the proof backend returns. Prover identifies the backend;
// the stub backend reports "receipt_sig" and its payload carries no
// cryptographic weight.
type Proof struct {
	ProofID        string            `json:"proof_id"`
	Proof          string            `json:"proof"`
	PublicInputs   PublicInputBundle `json:"public_inputs"`
	WitnessSummary WitnessSummary    `json:"witness_summary"`
	Prover         string            `json:"prover"`
}

// GatewayCheck is the remote gateway's own verdict on a receipt, used as a
// cross-check only; local signature binding is authoritative.
type GatewayCheck struct {
	OK         bool `json:"ok"`
	SigOK      bool `json:"sig_ok"`
	SnapshotOK bool `json:"snapshot_ok"`
}

// VerificationRecord is the persisted/cached summary of one verification
// attempt.
type VerificationRecord struct {
	ReceiptID         string            `json:"receipt_id"`
	ReceiptHash       string            `json:"receipt_hash"`
	SigOK             bool              `json:"sig_ok"`
	RecoveredIdentity string            `json:"recovered_identity"`
	ExpectedIdentity  string            `json:"expected_identity"`
	PolicyHash        string            `json:"policy_hash"`
	ConsentHash       string            `json:"consent_hash"`
	Anchored          bool              `json:"anchored"`
	Bundle            PublicInputBundle `json:"bundle"`
	CreatedAt         time.Time         `json:"created_at"`
}

// VerificationRepository persists verification records. FindByReceiptID
// returns the most recent record or ErrNotFound.
type VerificationRepository interface {
	Save(ctx context.Context, record VerificationRecord) error
	FindByReceiptID(ctx context.Context, receiptID string) (*VerificationRecord, error)
}

// PolicyInput is fed to the decision policy after the pipeline completes.
type PolicyInput struct {
	SigOK             bool   `json:"sig_ok"`
	IdentityMatch     bool   `json:"identity_match"`
	CommitmentsOK     bool   `json:"commitments_ok"`
	Anchored          bool   `json:"anchored"`
	RecoveredIdentity string `json:"recovered_identity"`
	ExpectedIdentity  string `json:"expected_identity"`
	ReceiptHash       string `json:"receipt_hash"`
	PolicyHash        string `json:"policy_hash"`
	ConsentHash       string `json:"consent_hash"`
	BundleHash        string `json:"bundle_hash"`
}

type PolicyResult struct {
	Allow bool     `json:"allow"`
	Deny  []string `json:"deny"`
	Flags []string `json:"flags"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
