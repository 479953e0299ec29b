package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"notary/internal/usecase"
)

func decodeJSON(payload []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	return dec.Decode(out)
}

func printJSON(value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	return nil
}

type verifySummary struct {
	ReceiptID         string   `json:"receipt_id"`
	ReceiptHash       string   `json:"receipt_hash"`
	State             string   `json:"state"`
	SigOK             bool     `json:"sig_ok"`
	RecoveredIdentity string   `json:"recovered_identity"`
	Reason            string   `json:"reason,omitempty"`
	CommitmentsOK     bool     `json:"commitments_ok"`
	Anchored          bool     `json:"anchored"`
	ProofID           string   `json:"proof_id,omitempty"`
	PolicyAllow       *bool    `json:"policy_allow,omitempty"`
	ArtifactDir       string   `json:"artifact_dir,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}

func summarize(result *usecase.VerifyReceiptResult, artifactDir string) verifySummary {
	summary := verifySummary{
		ReceiptID:         result.ReceiptID,
		ReceiptHash:       result.ReceiptHash,
		State:             string(result.State),
		SigOK:             result.Outcome.SigOK,
		RecoveredIdentity: result.Outcome.RecoveredIdentity,
		Reason:            result.Outcome.Reason,
		CommitmentsOK:     result.CommitmentsOK,
		Anchored:          result.AnchorRecord != nil || result.Receipt.AnchorRecord() != nil,
		ArtifactDir:       artifactDir,
		Warnings:          result.Warnings,
	}
	if result.Proof != nil {
		summary.ProofID = result.Proof.ProofID
	}
	if result.Policy != nil {
		allow := result.Policy.Result.Allow
		summary.PolicyAllow = &allow
	}
	return summary
}

func writeWarnings(result *usecase.VerifyReceiptResult) {
	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
}
