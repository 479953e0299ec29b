package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"notary/internal/domain"
	"notary/internal/infra/cachemem"
	"notary/internal/infra/canonical"
	cryptoinfra "notary/internal/infra/crypto"
	"notary/internal/infra/prover"
)

type fakeSource struct {
	receipts map[string]domain.Receipt
	check    domain.GatewayCheck
	checkErr error
	fetches  int
}

func (f *fakeSource) FetchReceipt(_ context.Context, receiptID string) (domain.Receipt, error) {
	f.fetches++
	receipt, ok := f.receipts[receiptID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return receipt, nil
}

func (f *fakeSource) VerifyReceipt(context.Context, string) (domain.GatewayCheck, error) {
	if f.checkErr != nil {
		return domain.GatewayCheck{}, f.checkErr
	}
	return f.check, nil
}

type fakeAnchorer struct {
	record  *domain.AnchorRecord
	attempt domain.AnchorAttempt
	calls   int
}

func (f *fakeAnchorer) RequestAnchor(_ context.Context, receiptID, payloadHash string) (*domain.AnchorRecord, domain.AnchorAttempt) {
	f.calls++
	attempt := f.attempt
	attempt.ReceiptID = receiptID
	attempt.PayloadHash = payloadHash
	return f.record, attempt
}

type fakePolicy struct {
	hash   string
	result domain.PolicyResult
	err    error
	inputs []domain.PolicyInput
}

func (f *fakePolicy) Evaluate(_ context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return domain.PolicyEvaluation{}, f.err
	}
	return domain.PolicyEvaluation{BundleID: "test", BundleHash: f.hash, Result: f.result}, nil
}

func (f *fakePolicy) BundleHash() string { return f.hash }

type fakeVerifications struct {
	saved   []domain.VerificationRecord
	saveErr error
}

func (f *fakeVerifications) Save(_ context.Context, record domain.VerificationRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, record)
	return nil
}

func (f *fakeVerifications) FindByReceiptID(context.Context, string) (*domain.VerificationRecord, error) {
	return nil, domain.ErrNotFound
}

type failingProver struct{}

func (failingProver) ProveBundle(context.Context, domain.PublicInputBundle, domain.Witness, bool) (domain.Proof, error) {
	return domain.Proof{}, domain.ErrExternalTool
}

// signReceipt attaches a fresh receipt_sig to the receipt and returns the
// gateway address it verifies against.
func signReceipt(t *testing.T, receipt domain.Receipt) (domain.Receipt, string) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	canonicalBytes, err := canonical.Marshal(receipt.SignedPayload())
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	digest := cryptoinfra.PersonalDigest(cryptoinfra.SigningDigest(canonicalBytes))
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	receipt["receipt_sig"] = hex.EncodeToString(sig)
	address := strings.ToLower(ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	return receipt, address
}

func signedReceipt(t *testing.T) (domain.Receipt, string) {
	t.Helper()
	return signReceipt(t, domain.Receipt{
		"receipt_id":            "r1",
		"action":                map[string]any{"type": "tool_call", "tool_id": "payments.transfer"},
		"policy_hash":           "0xaa11",
		"consent_snapshot_hash": "0xbb22",
		"amount":                float64(42),
	})
}

func TestVerifyReceipt_FullPipeline(t *testing.T) {
	receipt, address := signedReceipt(t)
	anchorer := &fakeAnchorer{
		record:  &domain.AnchorRecord{AnchorID: "anchor_1", L2Tx: domain.L2Tx{TxHash: "0xfeed"}},
		attempt: domain.AnchorAttempt{Provider: "gateway-l2", Status: domain.AnchorStatusAnchored},
	}
	policy := &fakePolicy{hash: "bundlehash", result: domain.PolicyResult{Allow: true}}
	verifications := &fakeVerifications{}

	uc := &VerifyReceipt{
		Anchorer:      anchorer,
		Prover:        prover.NewRunner("", time.Second),
		Policy:        policy,
		Verifications: verifications,
	}
	result, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		Receipt:          receipt,
		ExpectedIdentity: address,
		Anchor:           true,
		Prove:            true,
		Stub:             true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.State != StateDone {
		t.Fatalf("state = %q", result.State)
	}
	if !result.Outcome.SigOK || result.Outcome.RecoveredIdentity != address {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
	if !result.CommitmentsOK {
		t.Fatalf("expected commitments ok")
	}
	if result.Bundle.ReceiptHash != "0x"+result.ReceiptHash {
		t.Fatalf("bundle hash = %q, receipt hash = %q", result.Bundle.ReceiptHash, result.ReceiptHash)
	}
	if result.Bundle.GatewayAddress != address {
		t.Fatalf("bundle gateway = %q", result.Bundle.GatewayAddress)
	}
	if result.AnchorRecord == nil || result.AnchorRecord.AnchorID != "anchor_1" {
		t.Fatalf("anchor record = %+v", result.AnchorRecord)
	}
	if got := result.Receipt.AnchorRecord(); got == nil || got.L2Tx.TxHash != "0xfeed" {
		t.Fatalf("anchored receipt = %+v", got)
	}
	if result.Witness.AnchorTxHash != "0xfeed" {
		t.Fatalf("witness anchor tx = %q", result.Witness.AnchorTxHash)
	}
	if result.Proof == nil || result.Proof.Prover != prover.StubProverName {
		t.Fatalf("proof = %+v", result.Proof)
	}
	if result.Proof.ProofID != "proof_"+result.ReceiptHash {
		t.Fatalf("proof id = %q", result.Proof.ProofID)
	}
	if result.Policy == nil || !result.Policy.Result.Allow {
		t.Fatalf("policy = %+v", result.Policy)
	}
	if len(policy.inputs) != 1 || !policy.inputs[0].Anchored {
		t.Fatalf("policy input = %+v", policy.inputs)
	}
	if len(verifications.saved) != 1 || !verifications.saved[0].SigOK {
		t.Fatalf("saved = %+v", verifications.saved)
	}
}

func TestVerifyReceipt_AnchorDoesNotChangeHash(t *testing.T) {
	receipt, address := signedReceipt(t)
	plainHash, _, err := cryptoinfra.CommitReceipt(receipt)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	uc := &VerifyReceipt{
		Anchorer: &fakeAnchorer{
			record:  &domain.AnchorRecord{AnchorID: "anchor_1", L2Tx: domain.L2Tx{TxHash: "0xfeed"}},
			attempt: domain.AnchorAttempt{Provider: "gateway-l2", Status: domain.AnchorStatusAnchored},
		},
	}
	result, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		Receipt:          receipt,
		ExpectedIdentity: address,
		Anchor:           true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.ReceiptHash != plainHash {
		t.Fatalf("anchoring changed the receipt hash")
	}
	rehash, _, err := cryptoinfra.CommitReceipt(result.Receipt)
	if err != nil {
		t.Fatalf("commit anchored: %v", err)
	}
	if rehash != plainHash {
		t.Fatalf("anchored receipt hashes differently")
	}
}

func TestVerifyReceipt_TamperedReceipt(t *testing.T) {
	receipt, address := signedReceipt(t)
	receipt["amount"] = float64(43)

	policy := &fakePolicy{hash: "bundlehash"}
	uc := &VerifyReceipt{Policy: policy}
	result, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		Receipt:          receipt,
		ExpectedIdentity: address,
	})
	if err != nil {
		t.Fatalf("tampering must not be a pipeline error: %v", err)
	}

	if result.Outcome.SigOK {
		t.Fatalf("expected sig_ok=false for tampered receipt")
	}
	if result.Outcome.Reason == "" {
		t.Fatalf("expected a mismatch reason")
	}
	if result.Bundle.GatewayAddress != domain.GatewayAddressUnresolved {
		t.Fatalf("bundle gateway = %q", result.Bundle.GatewayAddress)
	}
	if len(policy.inputs) != 1 || policy.inputs[0].SigOK || policy.inputs[0].IdentityMatch {
		t.Fatalf("policy input = %+v", policy.inputs)
	}
}

func TestVerifyReceipt_AnchorFailureIsWarning(t *testing.T) {
	receipt, address := signedReceipt(t)
	uc := &VerifyReceipt{
		Anchorer: &fakeAnchorer{
			attempt: domain.AnchorAttempt{
				Provider:  "gateway-l2",
				Status:    domain.AnchorStatusFailed,
				ErrorCode: domain.AnchorErrorTimeout,
			},
		},
	}
	result, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		Receipt:          receipt,
		ExpectedIdentity: address,
		Anchor:           true,
	})
	if err != nil {
		t.Fatalf("anchor failure must not abort: %v", err)
	}
	if result.State != StateDone {
		t.Fatalf("state = %q", result.State)
	}
	if result.AnchorRecord != nil {
		t.Fatalf("expected no anchor record")
	}
	if result.AnchorAttempt == nil || result.AnchorAttempt.ErrorCode != domain.AnchorErrorTimeout {
		t.Fatalf("attempt = %+v", result.AnchorAttempt)
	}
	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, domain.AnchorErrorTimeout) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected timeout warning, got %v", result.Warnings)
	}
	if result.Bundle.ReceiptHash == "" || result.Witness.CanonicalReceipt == "" {
		t.Fatalf("bundle must still be produced")
	}
}

func TestVerifyReceipt_MissingCommitmentIsFatal(t *testing.T) {
	receipt, address := signReceipt(t, domain.Receipt{
		"receipt_id":  "r1",
		"policy_hash": "0xaa11",
	})

	uc := &VerifyReceipt{}
	result, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		Receipt:          receipt,
		ExpectedIdentity: address,
	})
	if !errors.Is(err, domain.ErrMissingCommitment) {
		t.Fatalf("expected ErrMissingCommitment, got %v", err)
	}
	if result != nil {
		t.Fatalf("no partial result on fatal error")
	}
}

func TestVerifyReceipt_CommitmentMismatchIsStructured(t *testing.T) {
	receipt, address := signedReceipt(t)
	uc := &VerifyReceipt{}
	result, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		Receipt:            receipt,
		ExpectedIdentity:   address,
		ExpectedPolicyHash: "0xdeadbeef",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.CommitmentsOK {
		t.Fatalf("expected commitments_ok=false")
	}
	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, domain.ErrCommitmentMismatch.Error()) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected commitment warning, got %v", result.Warnings)
	}
}

func TestVerifyReceipt_ProverFailureIsFatal(t *testing.T) {
	receipt, address := signedReceipt(t)
	uc := &VerifyReceipt{Prover: failingProver{}}
	_, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		Receipt:          receipt,
		ExpectedIdentity: address,
		Prove:            true,
	})
	if !errors.Is(err, domain.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestVerifyReceipt_FetchesFromGateway(t *testing.T) {
	receipt, address := signedReceipt(t)
	source := &fakeSource{
		receipts: map[string]domain.Receipt{"r1": receipt},
		check:    domain.GatewayCheck{OK: true, SigOK: true, SnapshotOK: true},
	}
	uc := &VerifyReceipt{Source: source}
	result, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		ReceiptID:        "r1",
		ExpectedIdentity: address,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if source.fetches != 1 {
		t.Fatalf("fetches = %d", source.fetches)
	}
	if result.GatewayCheck == nil || !result.GatewayCheck.SigOK {
		t.Fatalf("gateway check = %+v", result.GatewayCheck)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("warnings = %v", result.Warnings)
	}
}

func TestVerifyReceipt_GatewayDisagreementIsWarning(t *testing.T) {
	receipt, address := signedReceipt(t)
	source := &fakeSource{
		receipts: map[string]domain.Receipt{"r1": receipt},
		check:    domain.GatewayCheck{OK: false, SigOK: false},
	}
	uc := &VerifyReceipt{Source: source}
	result, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		ReceiptID:        "r1",
		ExpectedIdentity: address,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Outcome.SigOK {
		t.Fatalf("local binding stays authoritative")
	}
	if len(result.Warnings) == 0 {
		t.Fatalf("expected disagreement warning")
	}
}

func TestVerifyReceipt_CacheHit(t *testing.T) {
	receipt, address := signedReceipt(t)
	cache := cachemem.New(cachemem.Config{})
	uc := &VerifyReceipt{Cache: cache, CacheTTL: time.Minute}
	req := VerifyReceiptRequest{Receipt: receipt, ExpectedIdentity: address}

	first, err := uc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if first.Cached {
		t.Fatalf("first run must not be cached")
	}

	second, err := uc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if !second.Cached {
		t.Fatalf("expected cache hit")
	}
	if second.Bundle != first.Bundle {
		t.Fatalf("cached bundle differs")
	}
}

func TestVerifyReceipt_CacheHitRechecksCommitments(t *testing.T) {
	receipt, address := signedReceipt(t)
	cache := cachemem.New(cachemem.Config{})
	policy := &fakePolicy{hash: "bundlehash"}
	uc := &VerifyReceipt{Cache: cache, CacheTTL: time.Minute, Policy: policy}

	warm, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		Receipt:          receipt,
		ExpectedIdentity: address,
	})
	if err != nil {
		t.Fatalf("warm execute: %v", err)
	}
	if warm.Cached || !warm.CommitmentsOK {
		t.Fatalf("warm run = %+v", warm)
	}

	result, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		Receipt:            receipt,
		ExpectedIdentity:   address,
		ExpectedPolicyHash: "0xdeadbeef",
	})
	if err != nil {
		t.Fatalf("mismatch execute: %v", err)
	}
	if result.Cached {
		t.Fatalf("mismatching expected hash must not be served from cache")
	}
	if result.CommitmentsOK {
		t.Fatalf("expected commitments_ok=false")
	}
	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, domain.ErrCommitmentMismatch.Error()) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected commitment warning, got %v", result.Warnings)
	}
	if len(policy.inputs) != 2 || policy.inputs[1].CommitmentsOK {
		t.Fatalf("policy inputs = %+v", policy.inputs)
	}

	// A matching expected hash still hits the cache.
	again, err := uc.Execute(context.Background(), VerifyReceiptRequest{
		Receipt:            receipt,
		ExpectedIdentity:   address,
		ExpectedPolicyHash: "0xaa11",
	})
	if err != nil {
		t.Fatalf("matching execute: %v", err)
	}
	if !again.Cached {
		t.Fatalf("expected cache hit for matching expected hash")
	}
}

func TestVerifyReceipt_ProveBypassesCache(t *testing.T) {
	receipt, address := signedReceipt(t)
	cache := cachemem.New(cachemem.Config{})
	uc := &VerifyReceipt{
		Cache:    cache,
		CacheTTL: time.Minute,
		Prover:   prover.NewRunner("", time.Second),
	}
	req := VerifyReceiptRequest{Receipt: receipt, ExpectedIdentity: address}
	if _, err := uc.Execute(context.Background(), req); err != nil {
		t.Fatalf("warm execute: %v", err)
	}

	req.Prove = true
	req.Stub = true
	result, err := uc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("prove execute: %v", err)
	}
	if result.Cached {
		t.Fatalf("proving run must not come from cache")
	}
	if result.Proof == nil {
		t.Fatalf("expected a proof")
	}
}
