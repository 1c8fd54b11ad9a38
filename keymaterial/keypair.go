// Package keymaterial holds each device's long-lived X25519 identity and the
// Diffie-Hellman machinery used to derive the fleet's shared group secret.
//
// PublicKey mirrors the teacher's inter/validatorpk.PubKey shape (a type tag
// plus raw bytes, hex text (de)serialization) rather than a bare [32]byte,
// so the on-disk and wire forms stay self-describing even though only one
// curve is supported today.
package keymaterial

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/cloudflare/circl/dh/x25519"
)

// KeyType identifies the curve/algorithm a PublicKey was generated under.
// Only X25519 exists today; the tag exists so a future curve can be added
// without changing the wire shape.
type KeyType uint8

// X25519 is the only supported key type.
const X25519 KeyType = 1

// ErrWrongLength is returned when decoding key bytes of the wrong size.
var ErrWrongLength = errors.New("keymaterial: key must be 32 bytes")

// PublicKey is a device's identity public key.
type PublicKey struct {
	Type KeyType
	Raw  [32]byte
}

// String renders the key as "0x" + hex(Type || Raw), matching the teacher's
// validatorpk.PubKey.String convention.
func (pk PublicKey) String() string {
	return "0x" + hex.EncodeToString(pk.Bytes())
}

// Bytes returns the flat [Type byte][32 raw bytes] encoding.
func (pk PublicKey) Bytes() []byte {
	b := make([]byte, 0, 33)
	b = append(b, byte(pk.Type))
	return append(b, pk.Raw[:]...)
}

// PublicKeyFromHex parses a "0x"-prefixed or bare hex string back into a PublicKey.
func PublicKeyFromHex(s string) (PublicKey, error) {
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, err
	}
	if len(b) != 33 {
		return PublicKey{}, ErrWrongLength
	}
	var pk PublicKey
	pk.Type = KeyType(b[0])
	copy(pk.Raw[:], b[1:])
	return pk, nil
}

// RawPublicKeyFromHex parses a bare 32-byte hex public key (no type tag),
// used for the group-secret files under sync-root/keys/*.pub.
func RawPublicKeyFromHex(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, ErrWrongLength
	}
	copy(out[:], b)
	return out, nil
}

// KeyPair is a device's static X25519 secret/public pair.
type KeyPair struct {
	secret [32]byte
	public [32]byte
}

// Generate creates a fresh random X25519 keypair.
func Generate() (KeyPair, error) {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return KeyPair{}, err
	}
	return FromSecret(secret), nil
}

// FromSecret deterministically derives the public key for a given secret.
func FromSecret(secret [32]byte) KeyPair {
	var public [32]byte
	x25519.KeyGen((*x25519.Key)(&public), (*x25519.Key)(&secret))
	return KeyPair{secret: secret, public: public}
}

// Secret returns the raw 32-byte secret key.
func (kp KeyPair) Secret() [32]byte { return kp.secret }

// Public returns the device's public key, tagged as X25519.
func (kp KeyPair) Public() PublicKey {
	return PublicKey{Type: X25519, Raw: kp.public}
}

// PublicRaw returns the bare 32-byte public key, for group-secret math.
func (kp KeyPair) PublicRaw() [32]byte { return kp.public }

// SharedSecret runs X25519 Diffie-Hellman between this keypair's secret and
// a peer's raw public key.
func (kp KeyPair) SharedSecret(theirPublic [32]byte) ([32]byte, error) {
	var shared [32]byte
	ok := x25519.Shared((*x25519.Key)(&shared), (*x25519.Key)(&kp.secret), (*x25519.Key)(&theirPublic))
	if !ok {
		return shared, errors.New("keymaterial: low-order point in shared secret computation")
	}
	return shared, nil
}
