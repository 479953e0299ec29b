package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"notary/internal/domain"
	"notary/internal/infra/canonical"
	cryptoinfra "notary/internal/infra/crypto"
)

// runHash prints the canonical content hash of a receipt document. The
// hash covers the signed payload: receipt_sig and anchor are excluded.
func runHash(args []string) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var receiptPath string
	var outCanonical string
	fs.StringVar(&receiptPath, "receipt", "", "receipt JSON file (- for stdin)")
	fs.StringVar(&outCanonical, "out-canonical", "", "write canonical signed payload to file")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if receiptPath == "" {
		fmt.Fprintln(os.Stderr, "hash requires --receipt")
		return 1
	}

	receipt, err := readReceipt(receiptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read receipt: %v\n", err)
		return 1
	}

	hash, canonicalBytes, err := cryptoinfra.CommitReceipt(receipt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash receipt: %v\n", err)
		return 1
	}

	if outCanonical != "" {
		if err := os.WriteFile(outCanonical, canonicalBytes, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write canonical: %v\n", err)
			return 1
		}
	}

	fmt.Println(hash)
	return 0
}

func readReceipt(path string) (domain.Receipt, error) {
	var payload []byte
	var err error
	if path == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	// Round-trip through the canonicalizer to reject trailing data and
	// non-JSON input early.
	if _, err := canonical.Bytes(payload); err != nil {
		return nil, err
	}
	var receipt domain.Receipt
	if err := decodeJSON(payload, &receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}
