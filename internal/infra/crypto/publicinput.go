package crypto

import (
	"fmt"

	"notary/internal/domain"
	"notary/internal/infra/canonical"
)

const bundleNote = "use as public signals; feed canonical_receipt + signature as witness"

// BuildPublicInputs assembles the proof backend's public tuple. The policy
// and consent commitments must be present and non-empty; a bundle missing
// either would make the downstream proof meaningless, so that is fatal.
// The gateway address is populated only from a positive binding outcome.
func BuildPublicInputs(receipt domain.Receipt, receiptHash string, outcome domain.VerificationOutcome) (domain.PublicInputBundle, error) {
	policyHash := receipt.PolicyHash()
	if policyHash == "" {
		return domain.PublicInputBundle{}, fmt.Errorf("%w: policy_hash", domain.ErrMissingCommitment)
	}
	consentHash := receipt.ConsentHash()
	if consentHash == "" {
		return domain.PublicInputBundle{}, fmt.Errorf("%w: consent_snapshot_hash", domain.ErrMissingCommitment)
	}

	gatewayAddress := domain.GatewayAddressUnresolved
	if outcome.SigOK {
		gatewayAddress = outcome.RecoveredIdentity
	}

	return domain.PublicInputBundle{
		ReceiptHash:    "0x" + receiptHash,
		PolicyHash:     policyHash,
		ConsentHash:    consentHash,
		GatewayAddress: gatewayAddress,
		Note:           bundleNote,
	}, nil
}

// BuildWitness assembles the private input. The witness carries the full
// receipt, signature included, so the circuit can re-derive the signed
// payload itself.
func BuildWitness(receipt domain.Receipt, sigHex string) (domain.Witness, error) {
	full, err := canonical.Marshal(receipt)
	if err != nil {
		return domain.Witness{}, fmt.Errorf("canonicalize witness receipt: %w", err)
	}
	witness := domain.Witness{
		CanonicalReceipt: string(full),
		SignatureHex:     sigHex,
		ReceiptID:        receipt.ReceiptID(),
	}
	if anchor := receipt.AnchorRecord(); anchor != nil {
		witness.AnchorTxHash = anchor.L2Tx.TxHash
	}
	return witness, nil
}
