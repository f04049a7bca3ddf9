// Command keygen generates ed25519 keypairs for a set of issuer identities
// and prints the resulting trust root as JSON, for seeding verifier
// deployments.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"aval/internal/keyring"
)

func main() {
	issuers := flag.String("issuers", "issuer:user-wallet,issuer:merchant,issuer:processor,issuer:netting",
		"comma-separated issuer identities to generate keys for")
	out := flag.String("out", "", "path to persist the private keys for server startup (ISSUER_KEYS_PATH)")
	flag.Parse()

	reg := keyring.New()
	for _, issuer := range strings.Split(*issuers, ",") {
		issuer = strings.TrimSpace(issuer)
		if issuer == "" {
			continue
		}
		if err := reg.Generate(issuer); err != nil {
			fmt.Fprintf(os.Stderr, "generate key for %s: %v\n", issuer, err)
			os.Exit(1)
		}
	}

	if *out != "" {
		if err := reg.Save(*out); err != nil {
			fmt.Fprintf(os.Stderr, "persist issuer keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "wrote issuer keys to %s\n", *out)
	}

	root, err := json.MarshalIndent(reg.ExportPublicKeys(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode trust root: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(root))
}
