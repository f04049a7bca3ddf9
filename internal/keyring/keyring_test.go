package keyring

import (
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "aval/pkg/domain-errors"
)

func TestGenerate_RegistersKeypair(t *testing.T) {
	reg := New()

	require.NoError(t, reg.Generate("issuer:merchant"))

	priv, err := reg.SignerFor("issuer:merchant")
	require.NoError(t, err)
	assert.Len(t, priv, ed25519.PrivateKeySize)
}

func TestGenerate_ReplacesPriorKey(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Generate("issuer:merchant"))
	first, err := reg.PublicKeyB58("issuer:merchant")
	require.NoError(t, err)

	require.NoError(t, reg.Generate("issuer:merchant"))
	second, err := reg.PublicKeyB58("issuer:merchant")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestSignerFor_UnknownIssuer(t *testing.T) {
	reg := New()

	_, err := reg.SignerFor("issuer:ghost")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownIssuer))
}

func TestPublicKeyB58_MatchesPrivateKey(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Generate("issuer:merchant"))

	priv, err := reg.SignerFor("issuer:merchant")
	require.NoError(t, err)
	encoded, err := reg.PublicKeyB58("issuer:merchant")
	require.NoError(t, err)

	pub := priv.Public().(ed25519.PublicKey)
	assert.Equal(t, base58.Encode(pub), encoded)
}

func TestExportPublicKeys_AllIssuers(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Generate("issuer:user-wallet"))
	require.NoError(t, reg.Generate("issuer:merchant"))

	root := reg.ExportPublicKeys()

	assert.Len(t, root, 2)
	assert.Contains(t, root, "issuer:user-wallet")
	assert.Contains(t, root, "issuer:merchant")
}

func TestResolveVerificationMethod_Success(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Generate("issuer:merchant"))

	pub, err := reg.ResolveVerificationMethod("issuer:merchant#keys-1")
	require.NoError(t, err)
	assert.Len(t, pub, ed25519.PublicKeySize)

	encoded, err := reg.PublicKeyB58("issuer:merchant")
	require.NoError(t, err)
	assert.Equal(t, encoded, base58.Encode(pub))
}

func TestResolveVerificationMethod_NoFragment(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Generate("issuer:merchant"))

	_, err := reg.ResolveVerificationMethod("issuer:merchant")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedReference))
}

func TestResolveVerificationMethod_UnknownIssuer(t *testing.T) {
	reg := New()

	_, err := reg.ResolveVerificationMethod("issuer:ghost#keys-1")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownIssuer))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Generate("issuer:user-wallet"))
	require.NoError(t, reg.Generate("issuer:merchant"))

	path := filepath.Join(t.TempDir(), "issuer-keys.json")
	require.NoError(t, reg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, reg.ExportPublicKeys(), loaded.ExportPublicKeys())

	// Signatures from the reloaded registry verify against the original key.
	priv, err := loaded.SignerFor("issuer:user-wallet")
	require.NoError(t, err)
	msg := []byte("payload")
	sig := ed25519.Sign(priv, msg)
	pub, err := reg.ResolveVerificationMethod("issuer:user-wallet#keys-1")
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pub), msg, sig))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_RejectsBadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issuer-keys.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"issuer:merchant":"abc"}`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer:merchant")
}
