package keymaterial

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// storedTemplate is the on-disk text representation: two "key = value" lines,
// hex-encoded, matching original_source's StoredKeyPair (secret/public hex
// fields) rather than a binary blob, so the file stays legible and
// diffable.
const storedTemplate = "secret = %s\npublic = %s\n"

// Save writes the keypair to path as hex text, owner-only readable.
func Save(kp KeyPair, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	content := fmt.Sprintf(storedTemplate, hex.EncodeToString(kp.secret[:]), hex.EncodeToString(kp.public[:]))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// Load reads a keypair previously written by Save.
func Load(path string) (KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return KeyPair{}, err
	}
	fields := map[string]string{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		fields[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	secretHex, ok := fields["secret"]
	if !ok {
		return KeyPair{}, fmt.Errorf("keymaterial: %s missing secret field", path)
	}
	secretBytes, err := hex.DecodeString(secretHex)
	if err != nil || len(secretBytes) != 32 {
		return KeyPair{}, fmt.Errorf("keymaterial: %s has a malformed secret field", path)
	}
	var secret [32]byte
	copy(secret[:], secretBytes)
	return FromSecret(secret), nil
}

// LoadOrGenerate loads the keypair at path, generating and persisting a
// fresh one on first run.
func LoadOrGenerate(path string) (KeyPair, error) {
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	} else if !os.IsNotExist(err) {
		return KeyPair{}, err
	}
	kp, err := Generate()
	if err != nil {
		return KeyPair{}, err
	}
	if err := Save(kp, path); err != nil {
		return KeyPair{}, err
	}
	return kp, nil
}

// SavePairedDevice records a newly paired device's public key under
// <keysDir>/<deviceID>.pub, as a bare hex string (§6: "keys/ (paired
// public-key files, one per peer, named <name>.pub)").
func SavePairedDevice(keysDir, deviceID string, public [32]byte) error {
	if err := os.MkdirAll(keysDir, 0o700); err != nil {
		return err
	}
	path := filepath.Join(keysDir, deviceID+".pub")
	return os.WriteFile(path, []byte(hex.EncodeToString(public[:])+"\n"), 0o644)
}

// LoadPairedDevices reads every "<name>.pub" file under keysDir into the
// paired-device set. A missing directory (a device's first run, before any
// pairing has ever happened) is not an error: it yields an empty set.
func LoadPairedDevices(keysDir string) ([]PairedDevice, error) {
	entries, err := os.ReadDir(keysDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []PairedDevice
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pub") {
			continue
		}
		deviceID := strings.TrimSuffix(e.Name(), ".pub")
		raw, err := os.ReadFile(filepath.Join(keysDir, e.Name()))
		if err != nil {
			return nil, err
		}
		pub, err := RawPublicKeyFromHex(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("keymaterial: %s: %w", e.Name(), err)
		}
		out = append(out, PairedDevice{DeviceID: deviceID, PublicKey: pub})
	}
	return out, nil
}
