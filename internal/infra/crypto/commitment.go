// Package crypto holds the two hash pipelines a receipt goes through:
// the SHA-256 content commitment that becomes a public input, and the
// Keccak-based personal-message digest used for signature recovery. The
// two are deliberately separate named operations and never interchangeable.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"notary/internal/domain"
	"notary/internal/infra/canonical"
)

// ContentHash commits to canonical bytes with SHA-256, lowercase hex, no
// prefix. Presentation prefixes (0x) are the caller's concern.
func ContentHash(canonicalBytes []byte) string {
	sum := sha256.Sum256(canonicalBytes)
	return hex.EncodeToString(sum[:])
}

// CommitReceipt canonicalizes the signed payload of a receipt (receipt_sig
// and anchor stripped) and returns its content hash together with the
// canonical bytes the hash was computed over.
func CommitReceipt(receipt domain.Receipt) (hash string, canonicalBytes []byte, err error) {
	canonicalBytes, err = canonical.Marshal(receipt.SignedPayload())
	if err != nil {
		return "", nil, fmt.Errorf("canonicalize receipt: %w", err)
	}
	return ContentHash(canonicalBytes), canonicalBytes, nil
}
