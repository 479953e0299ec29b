package httpapi

import (
	"errors"
	"net/http"

	"notary/internal/domain"
	"notary/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type verifyRequest struct {
	Receipt      domain.Receipt `json:"receipt"`
	SignatureHex string         `json:"signature_hex,omitempty"`
	Options      verifyOptions  `json:"options"`
}

type verifyOptions struct {
	GatewayAddress string `json:"gateway_address,omitempty"`
	PolicyHash     string `json:"policy_hash,omitempty"`
	ConsentHash    string `json:"consent_hash,omitempty"`
	Anchor         bool   `json:"anchor,omitempty"`
	Prove          bool   `json:"prove,omitempty"`
	Stub           bool   `json:"stub,omitempty"`
}

type verifyResponse struct {
	ReceiptID         string                   `json:"receipt_id"`
	ReceiptHash       string                   `json:"receipt_hash"`
	State             string                   `json:"state"`
	Cached            bool                     `json:"cached,omitempty"`
	SigOK             bool                     `json:"sig_ok"`
	RecoveredIdentity string                   `json:"recovered_identity"`
	Reason            string                   `json:"reason,omitempty"`
	CommitmentsOK     bool                     `json:"commitments_ok"`
	PublicInputs      domain.PublicInputBundle `json:"public_inputs"`
	Anchor            *domain.AnchorRecord     `json:"anchor,omitempty"`
	GatewayCheck      *domain.GatewayCheck     `json:"gateway_check,omitempty"`
	Proof             *domain.Proof            `json:"proof,omitempty"`
	Policy            *domain.PolicyEvaluation `json:"policy,omitempty"`
	Warnings          []string                 `json:"warnings,omitempty"`
}

func buildVerifyResponse(result *usecase.VerifyReceiptResult) verifyResponse {
	return verifyResponse{
		ReceiptID:         result.ReceiptID,
		ReceiptHash:       result.ReceiptHash,
		State:             string(result.State),
		Cached:            result.Cached,
		SigOK:             result.Outcome.SigOK,
		RecoveredIdentity: result.Outcome.RecoveredIdentity,
		Reason:            result.Outcome.Reason,
		CommitmentsOK:     result.CommitmentsOK,
		PublicInputs:      result.Bundle,
		Anchor:            result.AnchorRecord,
		GatewayCheck:      result.GatewayCheck,
		Proof:             result.Proof,
		Policy:            result.Policy,
		Warnings:          result.Warnings,
	}
}

// handleVerify verifies an inline receipt document.
func (s *Server) handleVerify(c *gin.Context) {
	if s.verifyUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if len(req.Receipt) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_RECEIPT", "receipt is required")
		return
	}

	result, err := s.verifyUC.Execute(c.Request.Context(), usecase.VerifyReceiptRequest{
		Receipt:             req.Receipt,
		SignatureHex:        req.SignatureHex,
		ExpectedIdentity:    s.expectedIdentity(req.Options),
		ExpectedPolicyHash:  req.Options.PolicyHash,
		ExpectedConsentHash: req.Options.ConsentHash,
		Anchor:              req.Options.Anchor,
		Prove:               req.Options.Prove,
		Stub:                req.Options.Stub,
		SkipGatewayCheck:    true,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildVerifyResponse(result))
}

// handleVerifyByID fetches the receipt from the gateway first.
func (s *Server) handleVerifyByID(c *gin.Context) {
	if s.verifyUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	receiptID := c.Param("receipt_id")

	var opts verifyOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
			return
		}
	}

	result, err := s.verifyUC.Execute(c.Request.Context(), usecase.VerifyReceiptRequest{
		ReceiptID:           receiptID,
		ExpectedIdentity:    s.expectedIdentity(opts),
		ExpectedPolicyHash:  opts.PolicyHash,
		ExpectedConsentHash: opts.ConsentHash,
		Anchor:              opts.Anchor,
		Prove:               opts.Prove,
		Stub:                opts.Stub,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildVerifyResponse(result))
}

func (s *Server) handleGetVerification(c *gin.Context) {
	if s.verifications == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	record, err := s.verifications.FindByReceiptID(c.Request.Context(), c.Param("receipt_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleListAnchors(c *gin.Context) {
	if s.anchorAttempts == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	attempts, err := s.anchorAttempts.ListByReceiptID(c.Request.Context(), c.Param("receipt_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

// expectedIdentity prefers the per-request address and falls back to the
// configured gateway address.
func (s *Server) expectedIdentity(opts verifyOptions) string {
	if opts.GatewayAddress != "" {
		return opts.GatewayAddress
	}
	return s.cfg.GatewayAddress
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrUnsupportedValue):
		status, code = http.StatusBadRequest, "UNSUPPORTED_VALUE"
	case errors.Is(err, domain.ErrMissingCommitment):
		status, code = http.StatusBadRequest, "MISSING_COMMITMENT"
	case errors.Is(err, domain.ErrSignatureMalformed):
		status, code = http.StatusBadRequest, "SIGNATURE_MALFORMED"
	case errors.Is(err, domain.ErrCommitmentMismatch):
		status, code = http.StatusBadRequest, "COMMITMENT_MISMATCH"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		status, code = http.StatusBadGateway, "GATEWAY_UNAVAILABLE"
	case errors.Is(err, domain.ErrExternalTool):
		status, code = http.StatusBadGateway, "EXTERNAL_TOOL_FAILED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
