package eventlog

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wolfpack-dev/wolfpack/cipher"
	"github.com/wolfpack-dev/wolfpack/clock"
	"github.com/wolfpack-dev/wolfpack/event"
	"github.com/wolfpack-dev/wolfpack/keymaterial"
)

// Writer seals batches of events into a single device's log directory.
type Writer struct {
	root     string // <sync-root>/events/<device-id>
	deviceID string
	keyPair  keymaterial.KeyPair
	peers    []keymaterial.PairedDevice
	clk      clock.Clock
}

// NewWriter opens (creating if absent) the log directory for deviceID under
// root, using clk as the shared, mutable clock the sync engine persists
// across calls.
func NewWriter(root, deviceID string, kp keymaterial.KeyPair, peers []keymaterial.PairedDevice, clk clock.Clock) (*Writer, error) {
	dir := filepath.Join(root, deviceID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Writer{root: dir, deviceID: deviceID, keyPair: kp, peers: peers, clk: clk}, nil
}

// Write seals events as one new file in the device's log directory,
// following the seven-step procedure of §4.4. It returns the path written.
func (w *Writer) Write(events []event.Event) (string, error) {
	if len(events) == 0 {
		return "", ErrEmptyBatch
	}

	counter := w.clk.Increment(w.deviceID)
	clockSnapshot := w.clk.Clone()

	envs := make([]event.Envelope, 0, len(events))
	for _, ev := range events {
		env, err := event.NewEnvelope(w.deviceID, clockSnapshot, ev)
		if err != nil {
			return "", err
		}
		envs = append(envs, env)
	}

	plaintext, err := event.MarshalEnvelopes(envs)
	if err != nil {
		return "", err
	}

	groupSecret, err := w.keyPair.GroupSecret(w.peers)
	if err != nil {
		return "", err
	}

	suite := cipher.Preferred()
	nonce, ciphertext, err := cipher.Encrypt(suite, groupSecret[:], w.deviceID, counter, plaintext)
	if err != nil {
		return "", err
	}

	h := header{
		Version:   FormatVersion,
		Suite:     suite,
		SenderKey: w.keyPair.PublicRaw(),
		NonceLen:  uint8(len(nonce)),
	}
	data := encodeFile(h, nonce, ciphertext)

	n, err := nextEventNumber(w.root)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.root, filenameFor(n))
	return path, writeFileAtomically(path, data)
}

// writeFileAtomically writes data to a temp file in the same directory as
// path and renames it into place, so a crash mid-write never leaves a
// truncated log entry for readers to trip over.
func writeFileAtomically(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// nextEventNumber scans dir for existing "<NNNN>.evt" files and returns one
// greater than the maximum found, or 1 if the directory is empty (§4.4 step 6).
func nextEventNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".evt") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ".evt"))
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// sortedLogFiles lists a device directory's .evt files in filename order,
// which is numeric order given the fixed zero-padded width (§4.4: "sorted
// lexicographically by filename (equivalent to numeric order given zero
// padding)").
func sortedLogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".evt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
