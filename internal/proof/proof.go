// Package proof attaches and checks Ed25519Signature2020 proofs on mandates.
package proof

import (
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr-tron/base58"

	"aval/internal/keyring"
	"aval/internal/mandate"
	"aval/internal/mandate/canonical"
)

const (
	// ProofType tags the signature suite used for all mandate proofs.
	ProofType = "Ed25519Signature2020"
	// ProofPurpose is the fixed proof purpose for mandate assertions.
	ProofPurpose = "assertionMethod"
	// KeyFragment is the key label appended to the issuer id in every
	// verification method reference.
	KeyFragment = "keys-1"
)

// KeyResolver resolves a verification-method reference to raw public key
// bytes. Implemented by keyring.Registry.
type KeyResolver interface {
	ResolveVerificationMethod(vmRef string) ([]byte, error)
}

// Signer signs mandates on behalf of a single issuer identity.
type Signer struct {
	reg      *keyring.Registry
	issuerID string
	now      func() time.Time
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithClock overrides the proof creation clock, for tests.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

// NewSigner binds a signer to an issuer identity in the registry.
func NewSigner(reg *keyring.Registry, issuerID string, opts ...SignerOption) *Signer {
	s := &Signer{reg: reg, issuerID: issuerID, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssuerID returns the issuer identity this signer signs as.
func (s *Signer) IssuerID() string { return s.issuerID }

// Sign canonicalizes the mandate without its proof, signs the bytes with the
// issuer's private key, and returns a new mandate value carrying the proof.
// The input is not mutated.
func (s *Signer) Sign(m mandate.Mandate) (mandate.Mandate, error) {
	body, err := canonical.Bytes(m)
	if err != nil {
		return mandate.Mandate{}, fmt.Errorf("canonicalize for signing: %w", err)
	}

	priv, err := s.reg.SignerFor(s.issuerID)
	if err != nil {
		return mandate.Mandate{}, err
	}

	sig := ed25519.Sign(priv, body)
	p := mandate.Proof{
		Type:               ProofType,
		Created:            mandate.FormatTimestamp(s.now()),
		VerificationMethod: s.issuerID + "#" + KeyFragment,
		ProofPurpose:       ProofPurpose,
		ProofValue:         base58.Encode(sig),
	}
	return m.WithProof(p), nil
}

// Verifier checks mandate proofs. Verification failures are reported as a
// false return with a logged reason, never as an error: a well-formed
// mandate that fails to verify is an expected outcome, not a fault.
type Verifier struct {
	resolver KeyResolver
	logger   *slog.Logger
}

// NewVerifier constructs a Verifier resolving keys through the given resolver.
func NewVerifier(resolver KeyResolver, logger *slog.Logger) *Verifier {
	return &Verifier{resolver: resolver, logger: logger}
}

// Verify strips the proof, canonicalizes the remainder, resolves the proof's
// verification method, and checks the ed25519 signature.
func (v *Verifier) Verify(m mandate.Mandate) bool {
	if m.Proof == nil {
		v.logger.Warn("mandate has no proof", "mandate_id", m.ID)
		return false
	}
	if m.Proof.VerificationMethod == "" || m.Proof.ProofValue == "" {
		v.logger.Warn("proof is missing verificationMethod or proofValue", "mandate_id", m.ID)
		return false
	}

	body, err := canonical.Bytes(m)
	if err != nil {
		v.logger.Warn("canonicalization failed during verification",
			"mandate_id", m.ID, "error", err)
		return false
	}

	pub, err := v.resolver.ResolveVerificationMethod(m.Proof.VerificationMethod)
	if err != nil {
		v.logger.Warn("failed to resolve verification method",
			"mandate_id", m.ID,
			"verification_method", m.Proof.VerificationMethod,
			"error", err,
		)
		return false
	}
	if len(pub) != ed25519.PublicKeySize {
		v.logger.Warn("resolved key has wrong size", "mandate_id", m.ID, "size", len(pub))
		return false
	}

	sig, err := base58.Decode(m.Proof.ProofValue)
	if err != nil {
		v.logger.Warn("proofValue is not valid base58", "mandate_id", m.ID, "error", err)
		return false
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), body, sig) {
		v.logger.Warn("signature mismatch", "mandate_id", m.ID, "issuer", m.Issuer)
		return false
	}
	return true
}
