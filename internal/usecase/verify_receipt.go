package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notary/internal/domain"
	cryptoinfra "notary/internal/infra/crypto"
)

// State names the last pipeline stage that completed. Stages run in a
// fixed order; a fatal error leaves the result at the stage that was
// reached, with no partial bundle.
type State string

const (
	StateFetched            State = "fetched"
	StateHashComputed       State = "hash_computed"
	StateSignatureChecked   State = "signature_checked"
	StateCommitmentsChecked State = "commitments_checked"
	StateAnchorRequested    State = "anchor_requested"
	StateBundleReady        State = "bundle_ready"
	StateExternalProofDone  State = "external_proof_done"
	StateDone               State = "done"
)

type VerifyReceiptRequest struct {
	// ReceiptID selects a receipt to fetch from the gateway. Ignored when
	// Receipt is set.
	ReceiptID string
	Receipt   domain.Receipt

	// SignatureHex overrides the receipt's embedded signature.
	SignatureHex string

	// ExpectedIdentity is the gateway address the signature must bind to.
	// Empty accepts whatever identity the signature recovers to.
	ExpectedIdentity string

	// ExpectedPolicyHash and ExpectedConsentHash cross-check the receipt's
	// commitment fields when non-empty.
	ExpectedPolicyHash  string
	ExpectedConsentHash string

	Anchor bool
	Prove  bool
	Stub   bool

	// SkipGatewayCheck disables the remote cross-check even when a
	// gateway source is configured.
	SkipGatewayCheck bool
}

type VerifyReceiptResult struct {
	State   State
	Cached  bool
	Receipt domain.Receipt

	ReceiptID   string
	ReceiptHash string

	Outcome       domain.VerificationOutcome
	CommitmentsOK bool

	GatewayCheck  *domain.GatewayCheck
	AnchorRecord  *domain.AnchorRecord
	AnchorAttempt *domain.AnchorAttempt

	Bundle  domain.PublicInputBundle
	Witness domain.Witness
	Proof   *domain.Proof
	Policy  *domain.PolicyEvaluation

	// Warnings carry per-stage degradations (anchor failures, cache and
	// persistence errors, gateway cross-check problems). They never imply
	// the verification itself failed.
	Warnings []string
}

// VerifyReceipt drives one receipt through the whole pipeline: canonical
// hash, signature binding, commitment cross-checks, optional anchoring,
// public-input bundle, decision policy, optional external proof.
type VerifyReceipt struct {
	Source        ReceiptSource
	Anchorer      Anchorer
	Prover        ProofBackend
	Policy        PolicyEngine
	Verifications domain.VerificationRepository
	Cache         domain.VerificationCache
	CacheTTL      time.Duration
	Now           func() time.Time
}

func (uc *VerifyReceipt) Execute(ctx context.Context, req VerifyReceiptRequest) (*VerifyReceiptResult, error) {
	result := &VerifyReceiptResult{}

	receipt, err := uc.obtainReceipt(ctx, req)
	if err != nil {
		return nil, err
	}
	result.Receipt = receipt
	result.ReceiptID = receipt.ReceiptID()
	result.State = StateFetched

	receiptHash, canonicalSigned, err := cryptoinfra.CommitReceipt(receipt)
	if err != nil {
		return nil, err
	}
	result.ReceiptHash = receiptHash
	result.State = StateHashComputed

	cacheKey := uc.cacheKey(receiptHash, req.ExpectedIdentity)
	if cached := uc.cacheLookup(ctx, cacheKey, req, result); cached != nil {
		return cached, nil
	}

	sigHex := req.SignatureHex
	if sigHex == "" {
		sigHex = receipt.Signature()
	}
	if sigHex == "" {
		return nil, fmt.Errorf("%w: receipt carries no signature", domain.ErrSignatureMalformed)
	}
	outcome, err := cryptoinfra.Bind(canonicalSigned, sigHex, req.ExpectedIdentity)
	if err != nil {
		return nil, err
	}
	result.Outcome = outcome
	result.State = StateSignatureChecked

	result.CommitmentsOK = checkCommitments(receipt, req, result)
	result.State = StateCommitmentsChecked

	uc.gatewayCrossCheck(ctx, req, result)

	if req.Anchor {
		uc.requestAnchor(ctx, receiptHash, result)
		result.State = StateAnchorRequested
	}

	bundle, err := cryptoinfra.BuildPublicInputs(result.Receipt, receiptHash, outcome)
	if err != nil {
		return nil, err
	}
	witness, err := cryptoinfra.BuildWitness(result.Receipt, sigHex)
	if err != nil {
		return nil, err
	}
	result.Bundle = bundle
	result.Witness = witness
	result.State = StateBundleReady

	if uc.Policy != nil {
		evaluation, err := uc.Policy.Evaluate(ctx, uc.policyInput(req, result))
		if err != nil {
			return nil, fmt.Errorf("evaluate decision policy: %w", err)
		}
		result.Policy = &evaluation
	}

	if req.Prove {
		if uc.Prover == nil {
			return nil, fmt.Errorf("%w: no proof backend configured", domain.ErrExternalTool)
		}
		proof, err := uc.Prover.ProveBundle(ctx, bundle, witness, req.Stub)
		if err != nil {
			return nil, err
		}
		result.Proof = &proof
		result.State = StateExternalProofDone
	}

	uc.persist(ctx, cacheKey, req, result)
	result.State = StateDone
	return result, nil
}

func (uc *VerifyReceipt) obtainReceipt(ctx context.Context, req VerifyReceiptRequest) (domain.Receipt, error) {
	if req.Receipt != nil {
		return req.Receipt, nil
	}
	if req.ReceiptID == "" {
		return nil, errors.New("receipt or receipt id is required")
	}
	if uc.Source == nil {
		return nil, fmt.Errorf("%w: no gateway configured", domain.ErrGatewayUnavailable)
	}
	return uc.Source.FetchReceipt(ctx, req.ReceiptID)
}

func (uc *VerifyReceipt) cacheKey(receiptHash, expectedIdentity string) string {
	bundleHash := ""
	if uc.Policy != nil {
		bundleHash = uc.Policy.BundleHash()
	}
	return domain.VerificationCacheKey(receiptHash, expectedIdentity, bundleHash)
}

// cacheLookup short-circuits repeat verifications. Runs with side effects
// (anchoring, proving) always execute the pipeline.
func (uc *VerifyReceipt) cacheLookup(ctx context.Context, key string, req VerifyReceiptRequest, result *VerifyReceiptResult) *VerifyReceiptResult {
	if uc.Cache == nil || req.Anchor || req.Prove {
		return nil
	}
	record, err := uc.Cache.Get(ctx, key)
	if err != nil {
		result.Warnings = append(result.Warnings, "cache get: "+err.Error())
		return nil
	}
	if record == nil {
		return nil
	}
	// The key does not cover the expected commitment hashes; a cached
	// positive must not answer a request whose expected hashes disagree
	// with the receipt. Such a run goes through the full pipeline.
	precheck := &VerifyReceiptResult{}
	if !checkCommitments(result.Receipt, req, precheck) {
		return nil
	}
	cached := *result
	cached.Cached = true
	cached.Outcome = domain.VerificationOutcome{
		SigOK:             record.SigOK,
		RecoveredIdentity: record.RecoveredIdentity,
	}
	cached.CommitmentsOK = true
	cached.Bundle = record.Bundle
	cached.State = StateDone
	return &cached
}

func checkCommitments(receipt domain.Receipt, req VerifyReceiptRequest, result *VerifyReceiptResult) bool {
	ok := true
	if req.ExpectedPolicyHash != "" && !hashEqual(req.ExpectedPolicyHash, receipt.PolicyHash()) {
		ok = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: policy_hash %q != expected %q",
			domain.ErrCommitmentMismatch, receipt.PolicyHash(), req.ExpectedPolicyHash))
	}
	if req.ExpectedConsentHash != "" && !hashEqual(req.ExpectedConsentHash, receipt.ConsentHash()) {
		ok = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: consent_snapshot_hash %q != expected %q",
			domain.ErrCommitmentMismatch, receipt.ConsentHash(), req.ExpectedConsentHash))
	}
	return ok
}

func hashEqual(a, b string) bool {
	trim := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "0x"))
	}
	return trim(a) == trim(b)
}

func (uc *VerifyReceipt) gatewayCrossCheck(ctx context.Context, req VerifyReceiptRequest, result *VerifyReceiptResult) {
	if uc.Source == nil || req.SkipGatewayCheck || result.ReceiptID == "" {
		return
	}
	check, err := uc.Source.VerifyReceipt(ctx, result.ReceiptID)
	if err != nil {
		result.Warnings = append(result.Warnings, "gateway cross-check: "+err.Error())
		return
	}
	result.GatewayCheck = &check
	if check.SigOK != result.Outcome.SigOK {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"gateway cross-check disagrees: remote sig_ok=%v local sig_ok=%v", check.SigOK, result.Outcome.SigOK))
	}
}

func (uc *VerifyReceipt) requestAnchor(ctx context.Context, receiptHash string, result *VerifyReceiptResult) {
	if uc.Anchorer == nil {
		result.Warnings = append(result.Warnings, "anchoring requested but no anchor provider configured")
		return
	}
	record, attempt := uc.Anchorer.RequestAnchor(ctx, result.ReceiptID, receiptHash)
	result.AnchorAttempt = &attempt
	if record == nil {
		if attempt.Status == domain.AnchorStatusFailed {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", domain.ErrAnchorFailed, attempt.ErrorCode))
		}
		return
	}
	result.AnchorRecord = record
	// Attaching the anchor never changes the hash already computed: the
	// anchor field is outside the signed payload.
	result.Receipt = result.Receipt.WithAnchor(*record)
}

func (uc *VerifyReceipt) policyInput(req VerifyReceiptRequest, result *VerifyReceiptResult) domain.PolicyInput {
	bundleHash := ""
	if uc.Policy != nil {
		bundleHash = uc.Policy.BundleHash()
	}
	return domain.PolicyInput{
		SigOK:             result.Outcome.SigOK,
		IdentityMatch:     result.Outcome.Reason == "",
		CommitmentsOK:     result.CommitmentsOK,
		Anchored:          result.AnchorRecord != nil || result.Receipt.AnchorRecord() != nil,
		RecoveredIdentity: result.Outcome.RecoveredIdentity,
		ExpectedIdentity:  strings.ToLower(req.ExpectedIdentity),
		ReceiptHash:       result.Bundle.ReceiptHash,
		PolicyHash:        result.Bundle.PolicyHash,
		ConsentHash:       result.Bundle.ConsentHash,
		BundleHash:        bundleHash,
	}
}

func (uc *VerifyReceipt) persist(ctx context.Context, cacheKey string, req VerifyReceiptRequest, result *VerifyReceiptResult) {
	now := time.Now().UTC()
	if uc.Now != nil {
		now = uc.Now()
	}
	record := domain.VerificationRecord{
		ReceiptID:         result.ReceiptID,
		ReceiptHash:       result.ReceiptHash,
		SigOK:             result.Outcome.SigOK,
		RecoveredIdentity: result.Outcome.RecoveredIdentity,
		ExpectedIdentity:  strings.ToLower(req.ExpectedIdentity),
		PolicyHash:        result.Bundle.PolicyHash,
		ConsentHash:       result.Bundle.ConsentHash,
		Anchored:          result.AnchorRecord != nil || result.Receipt.AnchorRecord() != nil,
		Bundle:            result.Bundle,
		CreatedAt:         now,
	}
	if uc.Verifications != nil {
		if err := uc.Verifications.Save(ctx, record); err != nil {
			result.Warnings = append(result.Warnings, "persist verification: "+err.Error())
		}
	}
	if uc.Cache != nil && result.Outcome.SigOK && result.CommitmentsOK {
		if err := uc.Cache.Put(ctx, cacheKey, record, uc.CacheTTL); err != nil {
			result.Warnings = append(result.Warnings, "cache put: "+err.Error())
		}
	}
}
