package httpapi

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"notary/internal/config"
	"notary/internal/domain"
	"notary/internal/infra/canonical"
	cryptoinfra "notary/internal/infra/crypto"
	"notary/internal/usecase"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memVerifications struct {
	records map[string]domain.VerificationRecord
}

func (m *memVerifications) Save(_ context.Context, record domain.VerificationRecord) error {
	if m.records == nil {
		m.records = make(map[string]domain.VerificationRecord)
	}
	m.records[record.ReceiptID] = record
	return nil
}

func (m *memVerifications) FindByReceiptID(_ context.Context, receiptID string) (*domain.VerificationRecord, error) {
	record, ok := m.records[receiptID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

type memAttempts struct {
	attempts map[string][]domain.AnchorAttempt
}

func (m *memAttempts) Append(_ context.Context, attempt domain.AnchorAttempt) error {
	if m.attempts == nil {
		m.attempts = make(map[string][]domain.AnchorAttempt)
	}
	m.attempts[attempt.ReceiptID] = append(m.attempts[attempt.ReceiptID], attempt)
	return nil
}

func (m *memAttempts) ListByReceiptID(_ context.Context, receiptID string) ([]domain.AnchorAttempt, error) {
	return m.attempts[receiptID], nil
}

type staticSource struct {
	receipts map[string]domain.Receipt
}

func (s *staticSource) FetchReceipt(_ context.Context, receiptID string) (domain.Receipt, error) {
	receipt, ok := s.receipts[receiptID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return receipt, nil
}

func (s *staticSource) VerifyReceipt(context.Context, string) (domain.GatewayCheck, error) {
	return domain.GatewayCheck{OK: true, SigOK: true, SnapshotOK: true}, nil
}

func signedTestReceipt(t *testing.T) (domain.Receipt, string) {
	t.Helper()
	receipt := domain.Receipt{
		"receipt_id":            "r1",
		"policy_hash":           "0xaa11",
		"consent_snapshot_hash": "0xbb22",
	}
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
	return receipt, strings.ToLower(ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
}

func newTestServer(t *testing.T, source usecase.ReceiptSource) (*Server, *memVerifications, *memAttempts) {
	t.Helper()
	verifications := &memVerifications{}
	attempts := &memAttempts{}
	server := NewServerWithDeps(config.Config{HTTPAddr: ":0"}, ServerDeps{
		Verify: &usecase.VerifyReceipt{
			Source:        source,
			Verifications: verifications,
		},
		Verifications:  verifications,
		AnchorAttempts: attempts,
	})
	return server, verifications, attempts
}

func doJSON(server *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	server, _, _ := newTestServer(t, nil)
	w := doJSON(server, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no-db") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestVerifyInlineReceipt(t *testing.T) {
	receipt, address := signedTestReceipt(t)
	server, verifications, _ := newTestServer(t, nil)

	w := doJSON(server, http.MethodPost, "/v1/verify", verifyRequest{
		Receipt: receipt,
		Options: verifyOptions{GatewayAddress: address},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp verifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.SigOK || resp.RecoveredIdentity != address {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.PublicInputs.GatewayAddress != address {
		t.Fatalf("public inputs = %+v", resp.PublicInputs)
	}
	if _, ok := verifications.records["r1"]; !ok {
		t.Fatalf("verification not persisted")
	}
}

func TestVerifyInlineIdentityMismatchIs200(t *testing.T) {
	receipt, _ := signedTestReceipt(t)
	server, _, _ := newTestServer(t, nil)

	w := doJSON(server, http.MethodPost, "/v1/verify", verifyRequest{
		Receipt: receipt,
		Options: verifyOptions{GatewayAddress: "0x2222222222222222222222222222222222222222"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("identity mismatch must be 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp verifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SigOK || resp.Reason == "" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.PublicInputs.GatewayAddress != domain.GatewayAddressUnresolved {
		t.Fatalf("public inputs = %+v", resp.PublicInputs)
	}
}

func TestVerifyInlineMalformedSignatureIs400(t *testing.T) {
	receipt, address := signedTestReceipt(t)
	receipt["receipt_sig"] = "zz"
	server, _, _ := newTestServer(t, nil)

	w := doJSON(server, http.MethodPost, "/v1/verify", verifyRequest{
		Receipt: receipt,
		Options: verifyOptions{GatewayAddress: address},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "SIGNATURE_MALFORMED") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestVerifyInlineMissingReceipt(t *testing.T) {
	server, _, _ := newTestServer(t, nil)
	w := doJSON(server, http.MethodPost, "/v1/verify", verifyRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestVerifyByID(t *testing.T) {
	receipt, address := signedTestReceipt(t)
	source := &staticSource{receipts: map[string]domain.Receipt{"r1": receipt}}
	server, _, _ := newTestServer(t, source)

	w := doJSON(server, http.MethodPost, "/v1/receipts/r1/verify", verifyOptions{GatewayAddress: address})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp verifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.SigOK || resp.GatewayCheck == nil {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestVerifyByIDNotFound(t *testing.T) {
	server, _, _ := newTestServer(t, &staticSource{})
	w := doJSON(server, http.MethodPost, "/v1/receipts/missing/verify", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetVerification(t *testing.T) {
	server, verifications, _ := newTestServer(t, nil)
	verifications.Save(context.Background(), domain.VerificationRecord{
		ReceiptID:   "r9",
		ReceiptHash: "abc",
		SigOK:       true,
	})

	w := doJSON(server, http.MethodGet, "/v1/verifications/r9", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var record domain.VerificationRecord
	if err := json.Unmarshal(w.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.ReceiptHash != "abc" {
		t.Fatalf("record = %+v", record)
	}

	w = doJSON(server, http.MethodGet, "/v1/verifications/unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListAnchors(t *testing.T) {
	server, _, attempts := newTestServer(t, nil)
	attempts.Append(context.Background(), domain.AnchorAttempt{
		ReceiptID: "r1",
		Provider:  "gateway-l2",
		Status:    domain.AnchorStatusAnchored,
	})

	w := doJSON(server, http.MethodGet, "/v1/anchors/r1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "gateway-l2") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	server, _, _ := newTestServer(t, nil)
	w := doJSON(server, http.MethodGet, "/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
