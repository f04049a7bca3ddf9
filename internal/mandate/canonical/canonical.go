// Package canonical produces the deterministic byte image of a mandate used
// as the signing and verification input.
//
// Wire contract: the mandate is serialized to JSON with the proof field
// removed and transformed with RFC 8785 (JCS) canonical JSON — lexically
// sorted object members, normalized number and string formatting. Two
// semantically identical mandates always canonicalize to identical bytes;
// any change to a signed field changes the output. Signer and verifier must
// both use this function; any deviation breaks verification of previously
// signed data.
package canonical

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"aval/internal/mandate"
	dErrors "aval/pkg/domain-errors"
)

// Context URIs the canonicalizer resolves locally. Network document loading
// is never attempted; a mandate referencing any other context fails with
// CodeUnknownContext.
const (
	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"
	ContextSecurityV1    = "https://w3id.org/security/v1"
	ContextSecurityV2    = "https://w3id.org/security/v2"
	ContextMandatesV1    = "https://ap2-protocol.org/contexts/mandates/v1"
)

var localContexts = map[string]struct{}{
	ContextCredentialsV1: {},
	ContextSecurityV1:    {},
	ContextSecurityV2:    {},
	ContextMandatesV1:    {},
}

// DefaultContexts is the context list the builder stamps on every mandate.
func DefaultContexts() []string {
	return []string{ContextCredentialsV1, ContextMandatesV1, ContextSecurityV2}
}

// Bytes canonicalizes the mandate with its proof stripped. The input value is
// not mutated.
func Bytes(m mandate.Mandate) ([]byte, error) {
	for _, ctx := range m.Context {
		if _, ok := localContexts[ctx]; !ok {
			return nil, dErrors.New(dErrors.CodeUnknownContext,
				fmt.Sprintf("no local definition for context %s", ctx))
		}
	}

	body := m.WithoutProof()
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("serialize mandate: %w", err)
	}

	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize mandate: %w", err)
	}
	return out, nil
}
