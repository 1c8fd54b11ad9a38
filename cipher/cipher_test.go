package cipher_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfpack-dev/wolfpack/cipher"
)

func key32() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(42)
	}
	return k
}

func TestRoundtripAES(t *testing.T) {
	nonce, ct, err := cipher.Encrypt(cipher.AES256GCM, key32(), "test-device", 1, []byte("hello, wolfpack"))
	require.NoError(t, err)
	pt, err := cipher.Decrypt(cipher.AES256GCM, key32(), nonce, ct)
	require.NoError(t, err)
	require.Equal(t, "hello, wolfpack", string(pt))
}

func TestRoundtripXChaCha(t *testing.T) {
	nonce, ct, err := cipher.Encrypt(cipher.XChaCha20Poly1305, key32(), "test-device", 1, []byte("hello, wolfpack"))
	require.NoError(t, err)
	pt, err := cipher.Decrypt(cipher.XChaCha20Poly1305, key32(), nonce, ct)
	require.NoError(t, err)
	require.Equal(t, "hello, wolfpack", string(pt))
}

func TestNonceDeterminism(t *testing.T) {
	n1 := cipher.DeriveNonce(cipher.AES256GCM, "device-a", 42)
	n2 := cipher.DeriveNonce(cipher.AES256GCM, "device-a", 42)
	n3 := cipher.DeriveNonce(cipher.AES256GCM, "device-a", 43)
	n4 := cipher.DeriveNonce(cipher.AES256GCM, "device-b", 42)

	require.Equal(t, n1, n2)
	require.NotEqual(t, n1, n3)
	require.NotEqual(t, n1, n4)
}

func TestBitFlipBreaksDecryption(t *testing.T) {
	nonce, ct, err := cipher.Encrypt(cipher.AES256GCM, key32(), "d", 1, []byte("payload"))
	require.NoError(t, err)

	flipped := append([]byte(nil), ct...)
	flipped[0] ^= 0x01
	_, err = cipher.Decrypt(cipher.AES256GCM, key32(), nonce, flipped)
	require.ErrorIs(t, err, cipher.ErrDecryptFailed)

	flippedNonce := append([]byte(nil), nonce...)
	flippedNonce[0] ^= 0x01
	_, err = cipher.Decrypt(cipher.AES256GCM, key32(), flippedNonce, ct)
	require.ErrorIs(t, err, cipher.ErrDecryptFailed)
}

func TestWrongSuiteFails(t *testing.T) {
	nonce, ct, err := cipher.Encrypt(cipher.AES256GCM, key32(), "test", 1, []byte("secret"))
	require.NoError(t, err)
	_, err = cipher.Decrypt(cipher.XChaCha20Poly1305, key32(), nonce, ct)
	require.Error(t, err)
}

func TestPreferredIsValid(t *testing.T) {
	s := cipher.Preferred()
	require.True(t, s == cipher.AES256GCM || s == cipher.XChaCha20Poly1305)
}
