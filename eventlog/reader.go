package eventlog

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/wolfpack-dev/wolfpack/cipher"
	"github.com/wolfpack-dev/wolfpack/event"
	"github.com/wolfpack-dev/wolfpack/keymaterial"
)

// Reader decrypts event files under a sync-root's events directory.
type Reader struct {
	eventsDir   string
	keyPair     keymaterial.KeyPair
	peers       []keymaterial.PairedDevice
	groupSecret [32]byte
	haveSecret  bool

	// Warn receives a non-fatal per-file diagnostic (§4.4: log a warning
	// and keep going). Nil means diagnostics are dropped.
	Warn func(path string, err error)
}

// NewReader opens a reader rooted at <sync-root>/events.
func NewReader(eventsDir string, kp keymaterial.KeyPair, peers []keymaterial.PairedDevice) *Reader {
	return &Reader{eventsDir: eventsDir, keyPair: kp, peers: peers}
}

func (r *Reader) secret() ([32]byte, error) {
	if r.haveSecret {
		return r.groupSecret, nil
	}
	s, err := r.keyPair.GroupSecret(r.peers)
	if err != nil {
		return s, err
	}
	r.groupSecret = s
	r.haveSecret = true
	return s, nil
}

func (r *Reader) warn(path string, err error) {
	if r.Warn != nil {
		r.Warn(path, err)
	}
}

// ReadDevice returns the ordered decryption of every .evt file under
// <events>/<deviceID>, in filename order (§4.4 reader, "read-device-events").
func (r *Reader) ReadDevice(deviceID string) ([]event.Envelope, error) {
	dir := filepath.Join(r.eventsDir, deviceID)
	names, err := sortedLogFiles(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	secret, err := r.secret()
	if err != nil {
		return nil, err
	}

	var out []event.Envelope
	for _, name := range names {
		path := filepath.Join(dir, name)
		envs, err := r.decryptFile(path, secret)
		if err != nil {
			r.warn(path, err)
			continue
		}
		out = append(out, envs...)
	}
	return out, nil
}

// ReadAll concatenates ReadDevice across every device subdirectory and
// sorts the result by envelope timestamp ascending (§4.4, "read-all-events").
func (r *Reader) ReadAll() ([]event.Envelope, error) {
	entries, err := os.ReadDir(r.eventsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var all []event.Envelope
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		envs, err := r.ReadDevice(e.Name())
		if err != nil {
			return nil, err
		}
		all = append(all, envs...)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.Before(all[j].Timestamp)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return all, nil
}

func (r *Reader) decryptFile(path string, secret [32]byte) ([]event.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	h, nonce, ciphertext, err := decodeFile(data)
	if err != nil {
		return nil, err
	}

	plaintext, err := cipher.Decrypt(h.Suite, secret[:], nonce, ciphertext)
	if err != nil {
		return nil, ErrGroupKeyMismatchOrTamper
	}

	return event.UnmarshalEnvelopes(plaintext)
}
