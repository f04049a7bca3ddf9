// Package keyring owns signing key material per issuer identity.
//
// Private keys never leave the registry through the API; callers get at most
// a signing capability (SignerFor) or encoded public key bytes. Save/Load
// persist the seeds to disk so a restarted process keeps signing and
// verifying with the same keys. Verification-method references of the form
// "<issuer>#<label>" resolve to the issuer's current public key.
package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mr-tron/base58"

	dErrors "aval/pkg/domain-errors"
)

// Registry maps issuer identities to ed25519 keypairs. An issuer holds at
// most one active keypair; Generate replaces any prior key.
type Registry struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PrivateKey
}

// New constructs an empty key registry.
func New() *Registry {
	return &Registry{keys: make(map[string]ed25519.PrivateKey)}
}

// Generate creates and stores a fresh keypair for issuerID, overwriting any
// prior key for that identity.
func (r *Registry) Generate(issuerID string) error {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate keypair for %s: %w", issuerID, err)
	}
	r.mu.Lock()
	r.keys[issuerID] = priv
	r.mu.Unlock()
	return nil
}

// SignerFor returns the private signing capability for issuerID.
func (r *Registry) SignerFor(issuerID string) (ed25519.PrivateKey, error) {
	r.mu.RLock()
	priv, ok := r.keys[issuerID]
	r.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownIssuer,
			fmt.Sprintf("no key registered for issuer %s", issuerID))
	}
	return priv, nil
}

// PublicKeyB58 returns the issuer's public key in base58btc encoding.
func (r *Registry) PublicKeyB58(issuerID string) (string, error) {
	r.mu.RLock()
	priv, ok := r.keys[issuerID]
	r.mu.RUnlock()
	if !ok {
		return "", dErrors.New(dErrors.CodeUnknownIssuer,
			fmt.Sprintf("no key registered for issuer %s", issuerID))
	}
	pub := priv.Public().(ed25519.PublicKey)
	return base58.Encode(pub), nil
}

// ExportPublicKeys returns issuer id → base58 public key for every
// registered issuer. The result is what verifiers adopt as their trust root.
func (r *Registry) ExportPublicKeys() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.keys))
	for issuer, priv := range r.keys {
		out[issuer] = base58.Encode(priv.Public().(ed25519.PublicKey))
	}
	return out
}

// Save writes every issuer's private seed to path as base58 JSON, readable
// only by the owner. Verified history outlives the process only if the keys
// that signed it do, so the server persists its registry across restarts.
func (r *Registry) Save(path string) error {
	r.mu.RLock()
	seeds := make(map[string]string, len(r.keys))
	for issuer, priv := range r.keys {
		seeds[issuer] = base58.Encode(priv.Seed())
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(seeds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode keyring: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keyring %s: %w", path, err)
	}
	return nil
}

// Load reads a registry previously written by Save. A missing file surfaces
// as a wrapped os.ErrNotExist so callers can fall back to generating keys.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring %s: %w", path, err)
	}
	var seeds map[string]string
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("decode keyring %s: %w", path, err)
	}
	reg := New()
	for issuer, encoded := range seeds {
		seed, err := base58.Decode(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode seed for issuer %s: %w", issuer, err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("seed for issuer %s is %d bytes, want %d",
				issuer, len(seed), ed25519.SeedSize)
		}
		reg.keys[issuer] = ed25519.NewKeyFromSeed(seed)
	}
	return reg, nil
}

// ResolveVerificationMethod splits vmRef on the first '#' and returns the raw
// public key bytes of the issuer segment. Resolution is pure given the
// registry state.
func (r *Registry) ResolveVerificationMethod(vmRef string) ([]byte, error) {
	issuerID, _, found := strings.Cut(vmRef, "#")
	if !found {
		return nil, dErrors.New(dErrors.CodeMalformedReference,
			fmt.Sprintf("verification method %q has no key fragment", vmRef))
	}
	r.mu.RLock()
	priv, ok := r.keys[issuerID]
	r.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownIssuer,
			fmt.Sprintf("no key registered for issuer %s", issuerID))
	}
	pub := priv.Public().(ed25519.PublicKey)
	out := make([]byte, len(pub))
	copy(out, pub)
	return out, nil
}
