package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"notary/internal/config"
	"notary/internal/infra/anchor"
	"notary/internal/infra/anchor/gatewayl2"
	"notary/internal/infra/gateway"
	"notary/internal/infra/policyopa"
	"notary/internal/infra/prover"
	"notary/internal/usecase"
)

// runVerify drives a single receipt through the pipeline. Exit code 0
// means the receipt verified clean; 2 means the pipeline completed with a
// negative outcome (bad signature binding, commitment mismatch, policy
// deny); 1 is an operational error.
func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var receiptPath string
	var receiptID string
	var signatureHex string
	var gatewayAddr string
	var policyHash string
	var consentHash string
	var anchorFlag bool
	var proveFlag bool
	var stubFlag bool
	var outDir string

	fs.StringVar(&receiptPath, "receipt", "", "receipt JSON file (- for stdin)")
	fs.StringVar(&receiptID, "receipt-id", "", "fetch receipt from the gateway by id")
	fs.StringVar(&signatureHex, "signature", "", "override receipt_sig (hex)")
	fs.StringVar(&gatewayAddr, "gateway", "", "expected gateway address (default GATEWAY_ADDR)")
	fs.StringVar(&policyHash, "policy-hash", "", "expected policy_hash")
	fs.StringVar(&consentHash, "consent-hash", "", "expected consent_snapshot_hash")
	fs.BoolVar(&anchorFlag, "anchor", false, "request L2 anchoring")
	fs.BoolVar(&proveFlag, "prove", false, "invoke the proof backend")
	fs.BoolVar(&stubFlag, "stub", false, "force the stub proof backend")
	fs.StringVar(&outDir, "out-dir", "", "write artifacts under this directory (default ARTIFACT_DIR)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if receiptPath == "" && receiptID == "" {
		fmt.Fprintln(os.Stderr, "verify requires --receipt or --receipt-id")
		return 1
	}

	cfg := config.FromEnv()
	if gatewayAddr == "" {
		gatewayAddr = cfg.GatewayAddress
	}
	if outDir == "" {
		outDir = cfg.ArtifactDir
	}

	req := usecase.VerifyReceiptRequest{
		ReceiptID:           receiptID,
		SignatureHex:        signatureHex,
		ExpectedIdentity:    gatewayAddr,
		ExpectedPolicyHash:  policyHash,
		ExpectedConsentHash: consentHash,
		Anchor:              anchorFlag,
		Prove:               proveFlag,
		Stub:                stubFlag,
		SkipGatewayCheck:    receiptID == "",
	}
	if receiptPath != "" {
		receipt, err := readReceipt(receiptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read receipt: %v\n", err)
			return 1
		}
		req.Receipt = receipt
	}

	uc, err := buildPipeline(cfg, anchorFlag || receiptID != "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init pipeline: %v\n", err)
		return 1
	}

	result, err := uc.Execute(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}
	writeWarnings(result)

	store := &usecase.ArtifactStore{Dir: outDir}
	artifactDir, err := store.Save(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "write artifacts: %v\n", err)
		return 1
	}

	if err := printJSON(summarize(result, artifactDir)); err != nil {
		fmt.Fprintf(os.Stderr, "encode summary: %v\n", err)
		return 1
	}
	return verdictExitCode(result)
}

// buildPipeline wires the pipeline from environment configuration. The
// gateway client is only constructed when a command needs it.
func buildPipeline(cfg config.Config, needGateway bool) (*usecase.VerifyReceipt, error) {
	uc := &usecase.VerifyReceipt{
		Prover: prover.NewRunner(cfg.ProverCmd, time.Duration(cfg.ProverTimeoutSeconds)*time.Second),
	}

	if needGateway {
		client, err := gateway.NewClient(cfg.GatewayAPI, cfg.GatewayAuthKey, nil)
		if err != nil {
			return nil, err
		}
		uc.Source = client
		uc.Anchorer = anchor.NewService(
			gatewayl2.NewProvider(client),
			time.Duration(cfg.AnchorTimeoutSeconds)*time.Second,
			nil,
		)
	}

	if cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(context.Background(), cfg.PolicyBundlePath, cfg.PolicyBundleID)
		if err != nil {
			return nil, err
		}
		uc.Policy = engine
	}

	return uc, nil
}

func verdictExitCode(result *usecase.VerifyReceiptResult) int {
	if !result.Outcome.SigOK || !result.CommitmentsOK {
		return 2
	}
	if result.Policy != nil && !result.Policy.Result.Allow {
		return 2
	}
	return 0
}
