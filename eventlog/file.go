// Package eventlog implements the per-device append-only encrypted event
// files described in §3/§4.4: fixed binary header, authenticated ciphertext
// to end-of-file, one file per sequentially numbered log entry.
package eventlog

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wolfpack-dev/wolfpack/cipher"
)

// magic is the 4-byte file signature, "WOLF".
var magic = [4]byte{'W', 'O', 'L', 'F'}

// FormatVersion is the only header version this build writes or reads.
const FormatVersion = 2

var (
	// ErrCorruptLogFile covers every fixed-header framing problem: bad
	// magic, unsupported version, unknown cipher selector, or a short read
	// on any fixed-width field (§4.4 failure modes).
	ErrCorruptLogFile = errors.New("eventlog: corrupt log file")
	// ErrGroupKeyMismatchOrTamper is returned when the header parses but
	// the AEAD fails to open — either the group secret doesn't match or
	// the file was tampered with. Non-fatal at file scope: callers should
	// skip the file and keep reading its siblings.
	ErrGroupKeyMismatchOrTamper = errors.New("eventlog: group key mismatch or tampered file")
	// ErrEmptyBatch is returned by Write when asked to seal zero events.
	ErrEmptyBatch = errors.New("eventlog: cannot write an empty batch")
)

// header is the fixed-layout preamble of an event file, everything before
// the nonce and ciphertext.
type header struct {
	Version   uint8
	Suite     cipher.Suite
	SenderKey [32]byte
	NonceLen  uint8
}

// encodeFile assembles the full on-disk byte layout: magic, header, nonce,
// ciphertext.
func encodeFile(h header, nonce, ciphertext []byte) []byte {
	buf := make([]byte, 0, 4+1+1+32+1+len(nonce)+len(ciphertext))
	buf = append(buf, magic[:]...)
	buf = append(buf, h.Version, byte(h.Suite))
	buf = append(buf, h.SenderKey[:]...)
	buf = append(buf, h.NonceLen)
	buf = append(buf, nonce...)
	buf = append(buf, ciphertext...)
	return buf
}

// decodeFile splits the fixed header off the front of data and returns the
// header plus the remaining nonce+ciphertext tail.
func decodeFile(data []byte) (h header, nonce, ciphertext []byte, err error) {
	const fixedLen = 4 + 1 + 1 + 32 + 1
	if len(data) < fixedLen {
		return header{}, nil, nil, ErrCorruptLogFile
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return header{}, nil, nil, ErrCorruptLogFile
	}
	h.Version = data[4]
	if h.Version != FormatVersion {
		return header{}, nil, nil, ErrCorruptLogFile
	}
	h.Suite = cipher.Suite(data[5])
	if h.Suite.NonceSize() == 0 {
		return header{}, nil, nil, ErrCorruptLogFile
	}
	copy(h.SenderKey[:], data[6:38])
	h.NonceLen = data[38]

	rest := data[39:]
	nonceLen := int(h.NonceLen)
	if nonceLen != h.Suite.NonceSize() || len(rest) < nonceLen {
		return header{}, nil, nil, ErrCorruptLogFile
	}
	nonce = rest[:nonceLen]
	ciphertext = rest[nonceLen:]
	return h, nonce, ciphertext, nil
}

// filenameFor renders the 4-digit zero-padded filename for event number n
// (§3: "<NNNN>.evt").
func filenameFor(n int) string {
	return fmt.Sprintf("%04d.evt", n)
}
