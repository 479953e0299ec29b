package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "hash":
		return runHash(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "run":
		return runEndToEnd(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "notary"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s hash (--receipt <file>|-) [--out-canonical <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify (--receipt <file>|--receipt-id <id>) [--signature <hex>] [--gateway <addr>] [--policy-hash <hex>] [--consent-hash <hex>] [--anchor] [--prove] [--stub] [--out-dir <dir>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s run --mode tool|retrieval [--amount <n>] [--description <text>] [--query <text>] [--datasets <a,b>] [--gateway <addr>] [--anchor] [--prove] [--stub] [--out-dir <dir>]\n", name)
}
