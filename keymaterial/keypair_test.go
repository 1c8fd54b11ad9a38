package keymaterial_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfpack-dev/wolfpack/keymaterial"
)

func TestGenerateProducesDistinctKeys(t *testing.T) {
	a, err := keymaterial.Generate()
	require.NoError(t, err)
	b, err := keymaterial.Generate()
	require.NoError(t, err)
	require.NotEqual(t, a.PublicRaw(), b.PublicRaw())
}

func TestSharedSecretIsSymmetric(t *testing.T) {
	alice, err := keymaterial.Generate()
	require.NoError(t, err)
	bob, err := keymaterial.Generate()
	require.NoError(t, err)

	aliceShared, err := alice.SharedSecret(bob.PublicRaw())
	require.NoError(t, err)
	bobShared, err := bob.SharedSecret(alice.PublicRaw())
	require.NoError(t, err)

	require.Equal(t, aliceShared, bobShared)
}

func TestKeypairRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keypair.txt")

	original, err := keymaterial.Generate()
	require.NoError(t, err)
	require.NoError(t, keymaterial.Save(original, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := keymaterial.Load(path)
	require.NoError(t, err)
	require.Equal(t, original.PublicRaw(), loaded.PublicRaw())
	require.Equal(t, original.Secret(), loaded.Secret())
}

func TestLoadOrGenerateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keypair.txt")

	first, err := keymaterial.LoadOrGenerate(path)
	require.NoError(t, err)
	second, err := keymaterial.LoadOrGenerate(path)
	require.NoError(t, err)
	require.Equal(t, first.PublicRaw(), second.PublicRaw())
}

func TestGroupSecretAgreesForPairedDevices(t *testing.T) {
	a, err := keymaterial.Generate()
	require.NoError(t, err)
	b, err := keymaterial.Generate()
	require.NoError(t, err)

	gA, err := a.GroupSecret([]keymaterial.PairedDevice{{DeviceID: "b", PublicKey: b.PublicRaw()}})
	require.NoError(t, err)
	gB, err := b.GroupSecret([]keymaterial.PairedDevice{{DeviceID: "a", PublicKey: a.PublicRaw()}})
	require.NoError(t, err)

	require.Equal(t, gA, gB)
}

func TestGroupSecretSoloFallsBackToSelfDH(t *testing.T) {
	a, err := keymaterial.Generate()
	require.NoError(t, err)

	g, err := a.GroupSecret(nil)
	require.NoError(t, err)

	self, err := a.SharedSecret(a.PublicRaw())
	require.NoError(t, err)
	require.Equal(t, self, g)
}

func TestPublicKeyHexRoundtrip(t *testing.T) {
	kp, err := keymaterial.Generate()
	require.NoError(t, err)
	pk := kp.Public()

	parsed, err := keymaterial.PublicKeyFromHex(pk.String())
	require.NoError(t, err)
	require.Equal(t, pk, parsed)
}
