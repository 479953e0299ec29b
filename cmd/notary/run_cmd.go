package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"notary/internal/config"
	"notary/internal/infra/gateway"
	"notary/internal/usecase"
)

// runEndToEnd submits an action to the gateway, waits for the receipt it
// issues, and verifies it through the full pipeline.
func runEndToEnd(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var mode string
	var amount float64
	var description string
	var query string
	var datasets string
	var gatewayAddr string
	var anchorFlag bool
	var proveFlag bool
	var stubFlag bool
	var outDir string

	fs.StringVar(&mode, "mode", "tool", "action mode: tool or retrieval")
	fs.Float64Var(&amount, "amount", 25, "transfer amount (tool mode)")
	fs.StringVar(&description, "description", "demo transfer", "transfer description (tool mode)")
	fs.StringVar(&query, "query", "", "retrieval query (retrieval mode)")
	fs.StringVar(&datasets, "datasets", "", "comma-separated dataset ids (retrieval mode)")
	fs.StringVar(&gatewayAddr, "gateway", "", "expected gateway address (default GATEWAY_ADDR)")
	fs.BoolVar(&anchorFlag, "anchor", false, "request L2 anchoring")
	fs.BoolVar(&proveFlag, "prove", false, "invoke the proof backend")
	fs.BoolVar(&stubFlag, "stub", false, "force the stub proof backend")
	fs.StringVar(&outDir, "out-dir", "", "write artifacts under this directory (default ARTIFACT_DIR)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.FromEnv()
	if gatewayAddr == "" {
		gatewayAddr = cfg.GatewayAddress
	}
	if outDir == "" {
		outDir = cfg.ArtifactDir
	}

	client, err := gateway.NewClient(cfg.GatewayAPI, cfg.GatewayAuthKey, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init gateway client: %v\n", err)
		return 1
	}

	ctx := context.Background()
	receiptID, err := submitAction(ctx, client, mode, amount, description, query, datasets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit action: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "receipt issued: %s\n", receiptID)

	uc, err := buildPipeline(cfg, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init pipeline: %v\n", err)
		return 1
	}

	result, err := uc.Execute(ctx, usecase.VerifyReceiptRequest{
		ReceiptID:        receiptID,
		ExpectedIdentity: gatewayAddr,
		Anchor:           anchorFlag,
		Prove:            proveFlag,
		Stub:             stubFlag,
	})
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

func submitAction(ctx context.Context, client *gateway.Client, mode string, amount float64, description, query, datasets string) (string, error) {
	switch mode {
	case "tool":
		resp, err := client.SubmitToolCall(ctx, gateway.ToolCallRequest{
			ToolID: "payments.transfer",
			Args: map[string]any{
				"amount":      amount,
				"description": description,
			},
		})
		if err != nil {
			return "", err
		}
		return resp.ReceiptID, nil
	case "retrieval":
		if query == "" {
			return "", fmt.Errorf("retrieval mode requires --query")
		}
		var ids []string
		if datasets != "" {
			for _, id := range strings.Split(datasets, ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
		}
		resp, err := client.SubmitRetrievalQuery(ctx, gateway.RetrievalRequest{
			Query:    query,
			Datasets: ids,
		})
		if err != nil {
			return "", err
		}
		return resp.ReceiptID, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want tool or retrieval)", mode)
	}
}
