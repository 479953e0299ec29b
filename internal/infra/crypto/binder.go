package crypto

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"notary/internal/domain"
)

const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// SigningDigest is the Keccak-256 digest of the canonical receipt bytes.
// This is the inner message of the personal-sign scheme, not the content
// commitment.
func SigningDigest(canonicalBytes []byte) []byte {
	return ethcrypto.Keccak256(canonicalBytes)
}

// PersonalDigest applies the EIP-191 personal-message prefix to msg and
// hashes the result with Keccak-256. The prefix embeds the exact decimal
// byte length of msg; signer and verifier must agree on it bit for bit.
func PersonalDigest(msg []byte) []byte {
	prefix := personalMessagePrefix + strconv.Itoa(len(msg))
	return ethcrypto.Keccak256([]byte(prefix), msg)
}

// RecoverSigner recovers the signer address from a 65-byte r||s||v hex
// signature over the given 32-byte digest. Legacy v values 27/28 are
// accepted alongside 0..3.
func RecoverSigner(digest []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(normalizeHexEven(sigHex))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: invalid hex: %v", domain.ErrSignatureMalformed, err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: expected 65-byte signature, got %d", domain.ErrSignatureMalformed, len(sig))
	}
	v := sig[64]
	if v == 27 || v == 28 {
		v -= 27
	} else {
		v %= 4
	}
	recSig := make([]byte, 65)
	copy(recSig, sig[:64])
	recSig[64] = v

	pub, err := ethcrypto.SigToPub(digest, recSig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrSignatureMalformed, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// ParseGatewayAddress accepts a 20-byte address or a 32-byte left-padded
// field element, with or without 0x prefix.
func ParseGatewayAddress(s string) (common.Address, error) {
	raw, err := hex.DecodeString(normalizeHexEven(s))
	if err != nil {
		return common.Address{}, fmt.Errorf("parse gateway address: %w", err)
	}
	if len(raw) == 32 {
		raw = raw[12:]
	}
	if len(raw) != common.AddressLength {
		return common.Address{}, fmt.Errorf("gateway address must be 20 bytes (or 32 left-padded), got %d", len(raw))
	}
	return common.BytesToAddress(raw), nil
}

// Bind reconstructs the signed message for the canonical receipt bytes and
// binds the signature to an identity. An empty expectedIdentity accepts
// whatever address the signature recovers to. A recovered address that
// differs from the expected one is reported as a structured negative
// outcome, not an error; only an unrecoverable signature is an error.
func Bind(canonicalBytes []byte, sigHex, expectedIdentity string) (domain.VerificationOutcome, error) {
	digest := PersonalDigest(SigningDigest(canonicalBytes))
	recovered, err := RecoverSigner(digest, sigHex)
	if err != nil {
		return domain.VerificationOutcome{}, err
	}

	outcome := domain.VerificationOutcome{
		SigOK:             true,
		RecoveredIdentity: strings.ToLower(recovered.Hex()),
	}
	if expectedIdentity == "" {
		return outcome, nil
	}

	expected, err := ParseGatewayAddress(expectedIdentity)
	if err != nil {
		return domain.VerificationOutcome{}, err
	}
	if recovered != expected {
		outcome.SigOK = false
		outcome.Reason = domain.ErrIdentityMismatch.Error()
	}
	return outcome, nil
}

func normalizeHexEven(s string) string {
	clean := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(clean)%2 != 0 {
		return "0" + clean
	}
	return clean
}
