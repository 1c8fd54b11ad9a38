package eventlog

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wolfpack-dev/wolfpack/clock"
)

// FileRef names one sealed log file by its origin device and event number,
// without decrypting it. The peer transport (§4.9) trades files at this
// granularity: one sealed file is exactly one EncryptedEnvelope on the
// wire, since the writer always advances the clock counter and the file
// number together (§4.4 steps 1 and 6).
type FileRef struct {
	DeviceID string
	Number   int
	Path     string
}

// MissingSince lists every file under eventsDir whose device-local event
// number exceeds peerClock's recorded counter for that device — the set
// GetEvents's "envelopes whose origin-clock is not dominated by the given
// clock" (§4.9) reduces to, given one clock-increment per file.
func MissingSince(eventsDir string, peerClock clock.Clock) ([]FileRef, error) {
	entries, err := os.ReadDir(eventsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []FileRef
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		deviceID := e.Name()
		have := peerClock.Get(deviceID)

		dir := filepath.Join(eventsDir, deviceID)
		names, err := sortedLogFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			n, err := strconv.Atoi(strings.TrimSuffix(name, ".evt"))
			if err != nil {
				continue
			}
			if uint64(n) > have {
				out = append(out, FileRef{DeviceID: deviceID, Number: n, Path: filepath.Join(dir, name)})
			}
		}
	}
	return out, nil
}

// ReadRaw returns a sealed file's exact on-disk bytes, undecrypted, so the
// transport layer can hand it to a peer without ever touching plaintext.
func ReadRaw(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// SenderKeyOf parses just the fixed header of a sealed file and returns the
// sender public key it was written with, without attempting to decrypt the
// body. The daemon uses this to fill in the sender key of each envelope it
// sends to a peer.
func SenderKeyOf(data []byte) ([32]byte, error) {
	h, _, _, err := decodeFile(data)
	if err != nil {
		return [32]byte{}, err
	}
	return h.SenderKey, nil
}

// WriteRaw writes a sealed file received from a peer into
// <eventsDir>/<deviceID>/<NNNN>.evt, creating the device directory if
// needed. It refuses to overwrite an existing file: log files are
// immutable once written (§3, "They are never mutated after creation").
func WriteRaw(eventsDir, deviceID string, number int, data []byte) error {
	dir := filepath.Join(eventsDir, deviceID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	path := filepath.Join(dir, filenameFor(number))
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return writeFileAtomically(path, data)
}
