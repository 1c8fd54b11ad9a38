// Package cipher provides the authenticated-encryption abstraction used to
// seal and open event-log files. Two AEADs are supported; the one actually
// used for a given file is recorded in that file's header, never inferred.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Suite identifies an AEAD by its on-disk selector byte.
type Suite uint8

const (
	// AES256GCM is selector 1, 12-byte nonce.
	AES256GCM Suite = 1
	// XChaCha20Poly1305 is selector 2, 24-byte nonce.
	XChaCha20Poly1305 Suite = 2
)

var (
	// ErrUnknownSuite is returned when a file header names a selector byte
	// this build doesn't recognize.
	ErrUnknownSuite = errors.New("cipher: unknown suite selector")
	// ErrDecryptFailed is the opaque failure returned on AEAD tag mismatch
	// or a malformed nonce/ciphertext length. Deliberately uninformative:
	// the caller cannot distinguish tampering from corruption from the
	// wrong key, by design (spec's GroupKeyMismatchOrTamper).
	ErrDecryptFailed = errors.New("cipher: decryption failed")
)

// NonceSize returns the nonce length in bytes for the suite, or 0 if unknown.
func (s Suite) NonceSize() int {
	switch s {
	case AES256GCM:
		return 12
	case XChaCha20Poly1305:
		return 24
	default:
		return 0
	}
}

// Preferred picks AES-256-GCM when the running CPU advertises AES hardware
// acceleration (AES-NI / ARMv8 crypto extensions), otherwise XChaCha20-Poly1305,
// which is fast in pure software.
func Preferred() Suite {
	if cpuid.CPU.Supports(cpuid.AESNI) || cpuid.CPU.Supports(cpuid.AESARM) {
		return AES256GCM
	}
	return XChaCha20Poly1305
}

func aead(s Suite, key []byte) (cipher.AEAD, error) {
	switch s {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case XChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	default:
		return nil, ErrUnknownSuite
	}
}

// DeriveNonce computes the deterministic nonce for (deviceID, counter) under
// suite s: SHA-256(deviceID) supplies a device-specific prefix, and the
// counter fills the trailing 8 bytes in big-endian. Uniqueness across calls
// depends entirely on the caller never repeating a counter for the same
// device, which the event-log writer guarantees by incrementing the local
// clock before every seal.
func DeriveNonce(s Suite, deviceID string, counter uint64) []byte {
	size := s.NonceSize()
	nonce := make([]byte, size)
	h := sha256.Sum256([]byte(deviceID))
	copy(nonce, h[:size-8])
	binary.BigEndian.PutUint64(nonce[size-8:], counter)
	return nonce
}

// Encrypt seals plaintext under the 256-bit key using suite s, with the
// nonce derived from (deviceID, counter). It returns the nonce actually
// used alongside the ciphertext (tag included) so the caller can persist
// both.
func Encrypt(s Suite, key []byte, deviceID string, counter uint64, plaintext []byte) (nonce, ciphertext []byte, err error) {
	a, err := aead(s, key)
	if err != nil {
		return nil, nil, err
	}
	nonce = DeriveNonce(s, deviceID, counter)
	return nonce, a.Seal(nil, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext sealed by Encrypt. Any tag mismatch or
// length mismatch collapses to ErrDecryptFailed; the caller cannot learn
// which.
func Decrypt(s Suite, key, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != s.NonceSize() {
		return nil, ErrDecryptFailed
	}
	a, err := aead(s, key)
	if err != nil {
		return nil, err
	}
	pt, err := a.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return pt, nil
}
