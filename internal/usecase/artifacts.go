package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactStore lays verification outputs on disk, one directory per
// receipt: receipt.json, public.json, witness.json and, when a proof was
// produced, proof.json. Receipts are pretty-printed for humans; the
// canonical form inside the witness is what commitments are computed
// over.
type ArtifactStore struct {
	Dir string
}

func (s *ArtifactStore) Save(result *VerifyReceiptResult) (string, error) {
	if s == nil || s.Dir == "" {
		return "", nil
	}
	id := result.ReceiptID
	if id == "" {
		id = result.ReceiptHash
	}
	if id == "" {
		return "", fmt.Errorf("result has no receipt id or hash")
	}
	dir := filepath.Join(s.Dir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	files := map[string]any{
		"receipt.json": result.Receipt,
		"public.json":  result.Bundle,
		"witness.json": result.Witness,
	}
	if result.Proof != nil {
		files["proof.json"] = result.Proof
	}
	for name, value := range files {
		if err := writeJSON(filepath.Join(dir, name), value); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func writeJSON(path string, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	payload = append(payload, '\n')
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
