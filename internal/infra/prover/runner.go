// Package prover invokes the external proof backend. The backend is an
// executable that reads {public_inputs, witness} JSON on stdin and writes
// a Proof JSON on stdout. When no backend is configured (or stub mode is
// forced) a placeholder proof is produced; it is labeled so it can never
// pass for a real one.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"notary/internal/domain"
)

// StubProverName labels placeholder proofs. The payload is the receipt
// signature itself, which carries no zero-knowledge validity.
const StubProverName = "receipt_sig"

type Request struct {
	PublicInputs domain.PublicInputBundle `json:"public_inputs"`
	Witness      domain.Witness           `json:"witness"`

	// Stub forces the placeholder backend even when a real command is
	// configured.
	Stub bool `json:"-"`
}

type Runner struct {
	cmd     string
	timeout time.Duration
}

func NewRunner(cmd string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Runner{cmd: cmd, timeout: timeout}
}

// Prove produces a proof for the request. External backend failures are
// fatal: downstream artifacts depend on the proof, so there is no
// silent fallback from a configured backend to the stub.
func (r *Runner) Prove(ctx context.Context, req Request) (domain.Proof, error) {
	if req.Stub || r == nil || r.cmd == "" {
		return StubProof(req), nil
	}
	return r.proveExternal(ctx, req)
}

func (r *Runner) proveExternal(ctx context.Context, req Request) (domain.Proof, error) {
	parts := strings.Fields(r.cmd)
	if len(parts) == 0 {
		return domain.Proof{}, fmt.Errorf("%w: empty prover command", domain.ErrExternalTool)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return domain.Proof{}, fmt.Errorf("%w: encode prover input: %v", domain.ErrExternalTool, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, parts[0], parts[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return domain.Proof{}, fmt.Errorf("%w: prover %q: %s", domain.ErrExternalTool, parts[0], detail)
	}

	var proof domain.Proof
	if err := json.Unmarshal(stdout.Bytes(), &proof); err != nil {
		return domain.Proof{}, fmt.Errorf("%w: decode prover output: %v", domain.ErrExternalTool, err)
	}
	return proof, nil
}

// ProveBundle is Prove with flattened arguments, for callers that do not
// build a Request themselves.
func (r *Runner) ProveBundle(ctx context.Context, publicInputs domain.PublicInputBundle, witness domain.Witness, stub bool) (domain.Proof, error) {
	return r.Prove(ctx, Request{PublicInputs: publicInputs, Witness: witness, Stub: stub})
}

// StubProof builds the placeholder proof for environments with no real
// proving backend.
func StubProof(req Request) domain.Proof {
	return domain.Proof{
		ProofID:      "proof_" + strings.TrimPrefix(req.PublicInputs.ReceiptHash, "0x"),
		Proof:        req.Witness.SignatureHex,
		PublicInputs: req.PublicInputs,
		WitnessSummary: domain.WitnessSummary{
			ReceiptID:    req.Witness.ReceiptID,
			AnchorTxHash: req.Witness.AnchorTxHash,
			CanonicalLen: len(req.Witness.CanonicalReceipt),
		},
		Prover: StubProverName,
	}
}
